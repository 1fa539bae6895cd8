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

// Package registry is the fabric's directory of live agents (C4): it owns
// AgentRegistration metadata, wraps the capability index (C3), and answers
// the lookups the hub needs to route and discover.
package registry

import (
	"time"

	"github.com/agentfabric/fabric/identity"
)

// AgentType distinguishes a human operator's proxy agent from a fully
// autonomous one. The fabric treats both uniformly for routing purposes;
// the distinction exists for discovery filters and UI presentation.
type AgentType string

const (
	AgentTypeHuman AgentType = "HUMAN"
	AgentTypeAI    AgentType = "AI"
)

// InteractionMode names a channel an agent accepts messages through.
type InteractionMode string

const (
	InteractionHumanToAgent InteractionMode = "HUMAN_TO_AGENT"
	InteractionAgentToAgent InteractionMode = "AGENT_TO_AGENT"
)

// Capability is a named, described unit of functionality an agent
// advertises for discovery.
type Capability struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	InputSchema  map[string]interface{} `json:"inputSchema,omitempty"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// AgentMetadata is the discoverable, mutable-by-reregistration profile of
// an agent.
type AgentMetadata struct {
	AgentID          identity.AgentID  `json:"agentId"`
	AgentType        AgentType         `json:"agentType"`
	InteractionModes []InteractionMode `json:"interactionModes"`
	Capabilities     []Capability      `json:"capabilities"`
	OrganizationID   string            `json:"organizationId,omitempty"`
	PaymentAddress   string            `json:"paymentAddress,omitempty"`
	Custom           map[string]interface{} `json:"custom,omitempty"`
}

// AgentRegistration is a registered agent: its metadata plus the identity
// that was verified at registration time and the owner/registration
// bookkeeping the registry needs.
type AgentRegistration struct {
	AgentMetadata
	Identity     *identity.Identity `json:"-"`
	OwnerID      string             `json:"ownerId,omitempty"`
	RegisteredAt time.Time          `json:"registeredAt"`

	// lastSeen is advanced by Registry.Touch whenever a message from this
	// agent is routed; IsActive compares it against the liveness window.
	lastSeen time.Time
}

// AgentRef is the minimal, addressable reference to a registered agent —
// what callers pass to Hub.RegisterAgent and what Route resolves against.
type AgentRef struct {
	Metadata AgentMetadata
	Identity *identity.Identity
	OwnerID  string
}

// DiscoveryResult is the external, wire-shaped view of a matched agent
// (§6.2): metadata plus an optional semantic-search score.
type DiscoveryResult struct {
	AgentID        identity.AgentID `json:"agentId"`
	OrganizationID string           `json:"organizationId,omitempty"`
	AgentType      AgentType        `json:"agentType"`
	Capabilities   []Capability     `json:"capabilities"`
	PaymentAddress string           `json:"paymentAddress,omitempty"`
	Score          float64          `json:"score,omitempty"`
}
