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

// Package hub is the fabric's communication hub (C5): the single point
// through which every inter-agent message flows. It authenticates, routes,
// correlates request/response pairs, tracks collaboration chains to
// prevent loops, and never synthesizes message content of its own.
package hub

import (
	"errors"
	"time"

	"github.com/agentfabric/fabric/identity"
	"github.com/agentfabric/fabric/protocol"
)

// Routing and lifecycle errors (§7's error taxonomy).
var (
	ErrUnknownReceiver       = errors.New("hub: receiver not registered")
	ErrAuthenticationFailure = errors.New("hub: signature verification failed")
	ErrCollaborationLoop     = errors.New("hub: receiver already present in collaboration chain")
	ErrBackpressure          = errors.New("hub: receiver inbox is full")
	ErrHubShutdown           = errors.New("hub: hub is shutting down")
	ErrAlreadyRegistered     = errors.New("hub: agent already registered")
	ErrNotRegistered         = errors.New("hub: agent not registered")
)

// RequestStatus is the terminal (or in-flight) state of a PendingRequest.
type RequestStatus int

const (
	StatusPending RequestStatus = iota
	StatusCompleted
	StatusTimedOut
	StatusFailed
	StatusLateReceived
)

func (s RequestStatus) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusTimedOut:
		return "TIMED_OUT"
	case StatusFailed:
		return "FAILED"
	case StatusLateReceived:
		return "LATE_RECEIVED"
	default:
		return "UNKNOWN"
	}
}

// PendingRequest tracks a directed request awaiting its response, from the
// moment SendAndWait dispatches it until it is closed by a matching
// response, a timeout, or an explicit cancel. A timed-out request is kept
// around (status flips to LATE_RECEIVED on late delivery) for
// DefaultRetentionWindow so CheckLateResult can still retrieve it.
type PendingRequest struct {
	RequestID   string
	RequesterID identity.AgentID
	TargetID    identity.AgentID
	CreatedAt   time.Time
	Deadline    time.Time

	status   RequestStatus
	response *protocol.Message
	done     chan struct{}
}

// DefaultRetentionWindow bounds how long a TIMED_OUT or LATE_RECEIVED
// PendingRequest is retained for polling via CheckLateResult before the
// janitor evicts it. The source never fixed this; 15 minutes is the
// implementer's documented default (§9 open question).
const DefaultRetentionWindow = 15 * time.Minute

// DefaultInboxCapacity is the bounded inbox size §5 names as the default.
const DefaultInboxCapacity = 128

// Interceptor observes a routed message. It must not mutate msg; errors it
// returns are logged by the hub, never propagated to the routing caller.
type Interceptor func(msg *protocol.Message) error

// ObservabilitySink receives best-effort notifications about hub activity
// (§6.3). All methods are optional; embed DefaultObservabilitySink to get
// no-op defaults.
type ObservabilitySink interface {
	OnRouted(msg *protocol.Message)
	OnInterceptorError(err error)
	OnCooldown(agentID string, until time.Time)
	OnLateResponse(requestID string)
}

// DefaultObservabilitySink is a no-op ObservabilitySink; embed it to
// implement only the callbacks you care about.
type DefaultObservabilitySink struct{}

func (DefaultObservabilitySink) OnRouted(*protocol.Message)          {}
func (DefaultObservabilitySink) OnInterceptorError(error)            {}
func (DefaultObservabilitySink) OnCooldown(string, time.Time)        {}
func (DefaultObservabilitySink) OnLateResponse(string)               {}
