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
	"fmt"
	"time"

	"github.com/agentfabric/fabric/identity"
)

// SimplePeerProtocol builds and signs the directed, fire-and-forget message
// kinds (TEXT, COMMAND, RESPONSE, ERROR, STOP, SYSTEM, PING, COOLDOWN) that
// do not participate in the request/response correlation rules
// CollaborationProtocol enforces.
type SimplePeerProtocol struct {
	signer *Signer
}

// NewSimplePeerProtocol binds a SimplePeerProtocol to the local identity
// that will sign every message it formats.
func NewSimplePeerProtocol(id *identity.Identity) *SimplePeerProtocol {
	return &SimplePeerProtocol{signer: NewSigner(id)}
}

// Format builds a signed envelope of the given kind. now is injected so
// callers (and tests) control the timestamp rather than relying on a wall
// clock read buried in this method.
func (p *SimplePeerProtocol) Format(senderID, receiverID, content string, msgType MessageType, now time.Time) (*Message, error) {
	if msgType == MessageTypeRequestCollaboration || msgType == MessageTypeResponseCollaboration {
		return nil, fmt.Errorf("protocol: %s is a collaboration message type, use CollaborationProtocol", msgType)
	}
	m := New(senderID, receiverID, content, msgType, now)
	if err := p.signer.SignInPlace(m); err != nil {
		return nil, fmt.Errorf("protocol: sign message: %w", err)
	}
	return m, nil
}

// Validate checks that an inbound message is well-formed, within timestamp
// tolerance, and correctly signed by sender.
func (p *SimplePeerProtocol) Validate(m *Message, sender *identity.Identity, validator *Validator) error {
	return validator.Validate(m, sender)
}
