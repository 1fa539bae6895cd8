// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package hub

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfabric/fabric/identity"
	"github.com/agentfabric/fabric/protocol"
	"github.com/agentfabric/fabric/registry"
)

type testAgent struct {
	id  *identity.Identity
	ref registry.AgentRef
}

func newTestAgent(t *testing.T, name string) testAgent {
	t.Helper()
	id, err := identity.CreateKeyBased()
	require.NoError(t, err)
	return testAgent{
		id: id,
		ref: registry.AgentRef{
			Identity: id,
			Metadata: registry.AgentMetadata{
				AgentID:   id.ID(),
				AgentType: registry.AgentTypeAI,
				Capabilities: []registry.Capability{
					{Name: name, Description: name},
				},
			},
		},
	}
}

func newTestHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	reg := registry.New(nil)
	h, err := New(reg, opts...)
	require.NoError(t, err)
	return h
}

func signedMessage(t *testing.T, sender testAgent, receiver identity.AgentID, content string, msgType protocol.MessageType) *protocol.Message {
	t.Helper()
	msg := protocol.New(string(sender.id.ID()), string(receiver), content, msgType, time.Now())
	require.NoError(t, protocol.NewSigner(sender.id).SignInPlace(msg))
	return msg
}

// TestHub_RequestTimeoutThenLateResponse covers seed scenario 4: a caller's
// SendAndWait gives up after its deadline, and the responder's reply still
// lands and is retrievable via CheckLateResult.
func TestHub_RequestTimeoutThenLateResponse(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	requester := newTestAgent(t, "caller")
	responder := newTestAgent(t, "summarize")
	_, err := h.RegisterAgent(ctx, requester.ref)
	require.NoError(t, err)
	_, err = h.RegisterAgent(ctx, responder.ref)
	require.NoError(t, err)

	request := protocol.New(string(requester.id.ID()), string(responder.id.ID()), "please summarize", protocol.MessageTypeCommand, time.Now())
	request.Metadata.RequestID = uuid.NewString()
	require.NoError(t, protocol.NewSigner(requester.id).SignInPlace(request))

	respCh := make(chan *protocol.Message, 1)
	go func() {
		inbox, ok := h.Inbox(responder.id.ID())
		if !ok {
			return
		}
		msg := <-inbox
		// Simulate the responder taking longer than the caller's deadline.
		time.Sleep(40 * time.Millisecond)
		reply := protocol.New(string(responder.id.ID()), string(requester.id.ID()), "done", protocol.MessageTypeResponse, time.Now())
		reply.Metadata.RequestID = msg.Metadata.RequestID
		require.NoError(t, protocol.NewSigner(responder.id).SignInPlace(reply))
		require.NoError(t, h.Route(reply))
		respCh <- reply
	}()

	_, status, requestID, err := h.SendAndWait(ctx, request, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StatusTimedOut, status)

	reply := <-respCh
	_ = reply

	// Give the late completion a moment to land on the pending entry.
	require.Eventually(t, func() bool {
		lateStatus, response := h.CheckLateResult(requestID)
		return lateStatus == StatusLateReceived && response != nil
	}, time.Second, 5*time.Millisecond)
}

// TestHub_CollaborationLoopRejected covers seed scenario 5: A requests
// collaboration from B, B forwards to C, and C's attempt to forward back to
// A is rejected because A is already in the chain.
func TestHub_CollaborationLoopRejected(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	a := newTestAgent(t, "a")
	b := newTestAgent(t, "b")
	c := newTestAgent(t, "c")
	for _, ag := range []testAgent{a, b, c} {
		_, err := h.RegisterAgent(ctx, ag.ref)
		require.NoError(t, err)
	}

	collabA := protocol.NewCollaborationProtocol(a.id)
	req, err := collabA.FormatRequest(string(a.id.ID()), string(b.id.ID()), "task", "help", nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, h.Route(req))

	inboxB, ok := h.Inbox(b.id.ID())
	require.True(t, ok)
	received := <-inboxB
	assert.Equal(t, []string{string(a.id.ID())}, received.Metadata.CollaborationChain)

	// B forwards to C, reusing the same collaboration chain.
	forwardToC := protocol.New(string(b.id.ID()), string(c.id.ID()), "help", protocol.MessageTypeRequestCollaboration, time.Now())
	forwardToC.Metadata = received.Metadata
	require.NoError(t, protocol.NewSigner(b.id).SignInPlace(forwardToC))
	require.NoError(t, h.Route(forwardToC))

	inboxC, ok := h.Inbox(c.id.ID())
	require.True(t, ok)
	receivedByC := <-inboxC
	assert.ElementsMatch(t, []string{string(a.id.ID()), string(b.id.ID())}, receivedByC.Metadata.CollaborationChain)

	// C attempts to forward back to A — rejected, A is already on the chain.
	backToA := protocol.New(string(c.id.ID()), string(a.id.ID()), "help", protocol.MessageTypeRequestCollaboration, time.Now())
	backToA.Metadata = receivedByC.Metadata
	require.NoError(t, protocol.NewSigner(c.id).SignInPlace(backToA))

	err = h.Route(backToA)
	assert.ErrorIs(t, err, ErrCollaborationLoop)
}

// TestHub_InboxBackpressure covers seed scenario 6: a 2-capacity inbox
// rejects a 3rd enqueue with backpressure, then accepts a 4th after the
// consumer drains one slot, preserving FIFO order.
func TestHub_InboxBackpressure(t *testing.T) {
	h := newTestHub(t, WithInboxCapacity(2))
	ctx := context.Background()

	sender := newTestAgent(t, "sender")
	receiver := newTestAgent(t, "receiver")
	_, err := h.RegisterAgent(ctx, sender.ref)
	require.NoError(t, err)
	_, err = h.RegisterAgent(ctx, receiver.ref)
	require.NoError(t, err)

	msg1 := signedMessage(t, sender, receiver.id.ID(), "one", protocol.MessageTypeText)
	msg2 := signedMessage(t, sender, receiver.id.ID(), "two", protocol.MessageTypeText)
	msg3 := signedMessage(t, sender, receiver.id.ID(), "three", protocol.MessageTypeText)
	msg4 := signedMessage(t, sender, receiver.id.ID(), "four", protocol.MessageTypeText)

	require.NoError(t, h.Route(msg1))
	require.NoError(t, h.Route(msg2))
	assert.ErrorIs(t, h.Route(msg3), ErrBackpressure)

	inbox, ok := h.Inbox(receiver.id.ID())
	require.True(t, ok)
	first := <-inbox
	assert.Equal(t, "one", first.Content)

	require.NoError(t, h.Route(msg4))

	second := <-inbox
	third := <-inbox
	assert.Equal(t, "two", second.Content)
	assert.Equal(t, "four", third.Content)
}
