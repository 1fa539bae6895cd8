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

// Package protocol defines the wire-level message envelope exchanged between
// agents through the hub, its canonical signing form, and the two protocol
// state machines (simple peer messaging and request/response collaboration).
package protocol

import (
	"time"

	"github.com/google/uuid"
)

// MessageType is the tagged-variant discriminator for a Message. It
// replaces the source system's loosely-typed string dispatch with a closed
// set of known kinds.
type MessageType string

const (
	MessageTypeText                  MessageType = "TEXT"
	MessageTypeCommand                MessageType = "COMMAND"
	MessageTypeResponse               MessageType = "RESPONSE"
	MessageTypeError                  MessageType = "ERROR"
	MessageTypeStop                   MessageType = "STOP"
	MessageTypeSystem                 MessageType = "SYSTEM"
	MessageTypePing                   MessageType = "PING"
	MessageTypeCooldown               MessageType = "COOLDOWN"
	MessageTypeRequestCollaboration   MessageType = "REQUEST_COLLABORATION"
	MessageTypeResponseCollaboration  MessageType = "RESPONSE_COLLABORATION"
	MessageTypeCapabilityRequest      MessageType = "CAPABILITY_REQUEST"
	MessageTypeCapabilityResponse     MessageType = "CAPABILITY_RESPONSE"
)

// validMessageTypes backs MessageType.Valid without needing a linear scan.
var validMessageTypes = map[MessageType]bool{
	MessageTypeText:                 true,
	MessageTypeCommand:               true,
	MessageTypeResponse:              true,
	MessageTypeError:                 true,
	MessageTypeStop:                  true,
	MessageTypeSystem:                true,
	MessageTypePing:                  true,
	MessageTypeCooldown:              true,
	MessageTypeRequestCollaboration:  true,
	MessageTypeResponseCollaboration: true,
	MessageTypeCapabilityRequest:     true,
	MessageTypeCapabilityResponse:    true,
}

// Valid reports whether t is one of the fabric's known message types.
func (t MessageType) Valid() bool {
	return validMessageTypes[t]
}

// ProtocolVersion is the wire format version emitted by this implementation.
const ProtocolVersion = "1.0"

// Metadata carries the known optional fields the hub and protocols interpret,
// plus a free-form Custom map for anything else — a typed record standing in
// for the source's untyped metadata blob.
type Metadata struct {
	// RequestID correlates a directed request with its eventual response.
	RequestID string `json:"requestId,omitempty"`

	// CollaborationChain is the ordered list of agent ids already on the
	// call stack of a REQUEST_COLLABORATION. Only the hub appends to this;
	// agents must never set or mutate it directly.
	CollaborationChain []string `json:"collaborationChain,omitempty"`

	// CapabilityName names the capability a REQUEST_COLLABORATION targets.
	CapabilityName string `json:"capabilityName,omitempty"`

	// Custom holds any additional application-defined fields.
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// Message is the canonical envelope exchanged between agents via the hub.
// Once constructed and signed, a Message is never mutated — Lifecycles in
// the data model treat it as immutable from creation to consumption.
type Message struct {
	ID              string      `json:"id"`
	SenderID        string      `json:"senderId"`
	ReceiverID      string      `json:"receiverId"`
	Content         string      `json:"content"`
	MessageType     MessageType `json:"messageType"`
	ProtocolVersion string      `json:"protocolVersion"`
	Timestamp       time.Time   `json:"timestamp"`
	Metadata        Metadata    `json:"metadata"`
	Signature       []byte      `json:"signature,omitempty"`
}

// New builds an unsigned Message with a fresh id, the current protocol
// version, and the given timestamp. Call a Signer to populate Signature
// before routing it.
func New(senderID, receiverID, content string, msgType MessageType, ts time.Time) *Message {
	return &Message{
		ID:              uuid.NewString(),
		SenderID:        senderID,
		ReceiverID:      receiverID,
		Content:         content,
		MessageType:     msgType,
		ProtocolVersion: ProtocolVersion,
		Timestamp:       ts,
		Metadata:        Metadata{},
	}
}

// WithRequestID returns a shallow copy of the message tagged with a request
// id, for building directed request/response pairs.
func (m Message) WithRequestID(requestID string) *Message {
	m.Metadata.RequestID = requestID
	return &m
}

// IsCollaborationRequest reports whether this message starts or continues a
// REQUEST_COLLABORATION exchange.
func (m *Message) IsCollaborationRequest() bool {
	return m.MessageType == MessageTypeRequestCollaboration
}

// ChainContains reports whether agentID already appears in the message's
// collaboration chain.
func (m *Message) ChainContains(agentID string) bool {
	for _, id := range m.Metadata.CollaborationChain {
		if id == agentID {
			return true
		}
	}
	return false
}
