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

package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfabric/fabric/identity"
	"github.com/agentfabric/fabric/protocol"
	"github.com/agentfabric/fabric/ratelimit"
	"github.com/agentfabric/fabric/registry"
)

type fakeHub struct {
	mu         sync.Mutex
	inbox      chan *protocol.Message
	routed     []*protocol.Message
	unregistered bool
}

func newFakeHub(capacity int) *fakeHub {
	return &fakeHub{inbox: make(chan *protocol.Message, capacity)}
}

func (f *fakeHub) Inbox(identity.AgentID) (<-chan *protocol.Message, bool) {
	return f.inbox, true
}

func (f *fakeHub) Route(msg *protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routed = append(f.routed, msg)
	return nil
}

func (f *fakeHub) UnregisterAgent(identity.AgentID) {
	f.unregistered = true
}

func (f *fakeHub) routedMessages() []*protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*protocol.Message(nil), f.routed...)
}

type fakeEngine struct {
	handle    func(ctx context.Context, msg *protocol.Message) (*protocol.Message, error)
	lastUsage int
}

func (e *fakeEngine) Handle(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	return e.handle(ctx, msg)
}
func (e *fakeEngine) LastTokenUsage() int        { return e.lastUsage }
func (e *fakeEngine) Shutdown(context.Context) error { return nil }

func newTestIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.CreateKeyBased()
	require.NoError(t, err)
	return id
}

func TestRuntime_PingBypassesReasoningEngine(t *testing.T) {
	id := newTestIdentity(t)
	hub := newFakeHub(4)
	engine := &fakeEngine{handle: func(context.Context, *protocol.Message) (*protocol.Message, error) {
		t.Fatal("reasoning engine should not be invoked for PING")
		return nil, nil
	}}

	rt := New(id, registry.AgentMetadata{AgentID: id.ID()}, hub, engine, ratelimit.NewController(ratelimit.DefaultConfig()))
	go rt.Run()

	peer := newTestIdentity(t)
	ping := protocol.New(string(peer.ID()), string(id.ID()), "", protocol.MessageTypePing, time.Now())
	hub.inbox <- ping

	require.Eventually(t, func() bool { return len(hub.routedMessages()) == 1 }, time.Second, 5*time.Millisecond)
	reply := hub.routedMessages()[0]
	assert.Equal(t, protocol.MessageTypePing, reply.MessageType)
	assert.Equal(t, string(id.ID()), reply.SenderID)

	rt.Stop(context.Background())
}

func TestRuntime_CapabilityRequestRepliesWithDeclaredCapabilities(t *testing.T) {
	id := newTestIdentity(t)
	hub := newFakeHub(4)
	engine := &fakeEngine{handle: func(context.Context, *protocol.Message) (*protocol.Message, error) {
		t.Fatal("reasoning engine should not be invoked for CAPABILITY_REQUEST")
		return nil, nil
	}}
	meta := registry.AgentMetadata{
		AgentID:      id.ID(),
		Capabilities: []registry.Capability{{Name: "summarize", Description: "summarize text"}},
	}

	rt := New(id, meta, hub, engine, ratelimit.NewController(ratelimit.DefaultConfig()))
	go rt.Run()

	peer := newTestIdentity(t)
	req := protocol.New(string(peer.ID()), string(id.ID()), "", protocol.MessageTypeCapabilityRequest, time.Now())
	hub.inbox <- req

	require.Eventually(t, func() bool { return len(hub.routedMessages()) == 1 }, time.Second, 5*time.Millisecond)
	reply := hub.routedMessages()[0]
	assert.Equal(t, protocol.MessageTypeCapabilityResponse, reply.MessageType)
	caps, ok := reply.Metadata.Custom["capabilities"].([]registry.Capability)
	require.True(t, ok)
	assert.Equal(t, meta.Capabilities, caps)

	rt.Stop(context.Background())
}

func TestRuntime_ReasoningEngineErrorProducesErrorReply(t *testing.T) {
	id := newTestIdentity(t)
	hub := newFakeHub(4)
	engine := &fakeEngine{handle: func(context.Context, *protocol.Message) (*protocol.Message, error) {
		return nil, assertErr
	}}

	rt := New(id, registry.AgentMetadata{AgentID: id.ID()}, hub, engine, ratelimit.NewController(ratelimit.DefaultConfig()))
	go rt.Run()

	peer := newTestIdentity(t)
	text := protocol.New(string(peer.ID()), string(id.ID()), "hello", protocol.MessageTypeText, time.Now())
	hub.inbox <- text

	require.Eventually(t, func() bool { return len(hub.routedMessages()) == 1 }, time.Second, 5*time.Millisecond)
	reply := hub.routedMessages()[0]
	assert.Equal(t, protocol.MessageTypeError, reply.MessageType)
	assert.Equal(t, assertErr.Error(), reply.Content)

	rt.Stop(context.Background())
}

func TestRuntime_StopDrainsInboxWithShutdownErrors(t *testing.T) {
	id := newTestIdentity(t)
	hub := newFakeHub(4)
	engine := &fakeEngine{handle: func(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	rt := New(id, registry.AgentMetadata{AgentID: id.ID()}, hub, engine, ratelimit.NewController(ratelimit.DefaultConfig()))
	go rt.Run()

	peer := newTestIdentity(t)
	blocking := protocol.New(string(peer.ID()), string(id.ID()), "slow", protocol.MessageTypeText, time.Now())
	hub.inbox <- blocking

	// Let the loop pick up the blocking message before queuing a second one
	// that will still be sitting in the inbox when Stop is called.
	time.Sleep(20 * time.Millisecond)
	queued := protocol.New(string(peer.ID()), string(id.ID()), "queued", protocol.MessageTypeText, time.Now())
	hub.inbox <- queued

	rt.Stop(context.Background())
	assert.True(t, hub.unregistered)

	found := false
	for _, reply := range hub.routedMessages() {
		if reply.MessageType == protocol.MessageTypeError && reply.Content == ErrAgentShuttingDown.Error() {
			found = true
		}
	}
	assert.True(t, found, "expected a drained message to receive an AgentShuttingDown error reply")
}

var assertErr = &testError{"reasoning engine failed"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
