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

package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentfabric/fabric/identity"
)

// Collaboration protocol errors.
var (
	ErrMissingRequestID      = errors.New("protocol: collaboration message missing requestId")
	ErrMissingCapabilityName = errors.New("protocol: collaboration request missing capabilityName")
	ErrRequestIDMismatch     = errors.New("protocol: response requestId does not match request")
	ErrLoopDetected          = errors.New("protocol: agent already present in collaboration chain")
)

// CollaborationProtocol builds and validates the REQUEST_COLLABORATION /
// RESPONSE_COLLABORATION pair: a request must carry a capability name and a
// fresh request id, and its eventual response must echo that same request
// id so the original caller can correlate it. The chain of agent ids a
// request has already passed through is appended to exclusively by the hub
// (see hub.Route) — agents never mutate it themselves, which is what makes
// ChainContains a reliable loop check.
type CollaborationProtocol struct {
	signer *Signer
}

// NewCollaborationProtocol binds a CollaborationProtocol to the local
// identity that will sign every message it formats.
func NewCollaborationProtocol(id *identity.Identity) *CollaborationProtocol {
	return &CollaborationProtocol{signer: NewSigner(id)}
}

// FormatRequest builds a signed REQUEST_COLLABORATION envelope naming the
// capability the sender wants performed on its behalf. chain is the
// collaboration chain so far (empty for a request originated directly by
// an agent, non-empty when one collaboration forwards into another).
func (p *CollaborationProtocol) FormatRequest(senderID, receiverID, capabilityName, content string, chain []string, now time.Time) (*Message, error) {
	if capabilityName == "" {
		return nil, ErrMissingCapabilityName
	}
	m := New(senderID, receiverID, content, MessageTypeRequestCollaboration, now)
	m.Metadata.RequestID = uuid.NewString()
	m.Metadata.CapabilityName = capabilityName
	m.Metadata.CollaborationChain = append([]string(nil), chain...)

	if err := p.signer.SignInPlace(m); err != nil {
		return nil, fmt.Errorf("protocol: sign request: %w", err)
	}
	return m, nil
}

// FormatResponse builds a signed RESPONSE_COLLABORATION envelope answering
// request, echoing its requestId so the original caller can correlate the
// reply.
func (p *CollaborationProtocol) FormatResponse(senderID string, request *Message, content string, now time.Time) (*Message, error) {
	if request.Metadata.RequestID == "" {
		return nil, ErrMissingRequestID
	}
	m := New(senderID, request.SenderID, content, MessageTypeResponseCollaboration, now)
	m.Metadata.RequestID = request.Metadata.RequestID
	m.Metadata.CapabilityName = request.Metadata.CapabilityName
	m.Metadata.CollaborationChain = append([]string(nil), request.Metadata.CollaborationChain...)

	if err := p.signer.SignInPlace(m); err != nil {
		return nil, fmt.Errorf("protocol: sign response: %w", err)
	}
	return m, nil
}

// ValidateRequest checks that a REQUEST_COLLABORATION envelope carries a
// capability name and request id, and that nextHop does not already appear
// in its collaboration chain (a loop would otherwise result if nextHop
// forwards the same request again).
func ValidateRequest(m *Message, nextHop string) error {
	if m.MessageType != MessageTypeRequestCollaboration {
		return fmt.Errorf("protocol: expected REQUEST_COLLABORATION, got %s", m.MessageType)
	}
	if m.Metadata.RequestID == "" {
		return ErrMissingRequestID
	}
	if m.Metadata.CapabilityName == "" {
		return ErrMissingCapabilityName
	}
	if m.ChainContains(nextHop) {
		return fmt.Errorf("%w: %s", ErrLoopDetected, nextHop)
	}
	return nil
}

// ValidateResponse checks that a RESPONSE_COLLABORATION envelope echoes the
// requestId of the request it answers.
func ValidateResponse(response, request *Message) error {
	if response.MessageType != MessageTypeResponseCollaboration {
		return fmt.Errorf("protocol: expected RESPONSE_COLLABORATION, got %s", response.MessageType)
	}
	if response.Metadata.RequestID == "" {
		return ErrMissingRequestID
	}
	if response.Metadata.RequestID != request.Metadata.RequestID {
		return ErrRequestIDMismatch
	}
	return nil
}
