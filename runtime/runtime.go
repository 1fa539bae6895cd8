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

// Package runtime is the fabric's per-agent runtime (C7): a cooperative
// loop that pulls from a bounded inbox, dispatches to a pluggable
// ReasoningEngine, and routes replies back through the hub.
package runtime

import (
	"context"
	"time"

	"github.com/agentfabric/fabric/identity"
	"github.com/agentfabric/fabric/internal/logger"
	"github.com/agentfabric/fabric/internal/metrics"
	"github.com/agentfabric/fabric/protocol"
	"github.com/agentfabric/fabric/ratelimit"
	"github.com/agentfabric/fabric/registry"
)

// ReasoningEngine is the runtime's dependency-injection point: the agent
// logic that turns an inbound message into an optional reply. The built-in
// fabric carries no LLM-backed implementation; callers supply their own.
type ReasoningEngine interface {
	// Handle processes msg and returns a reply to route back, or nil if no
	// reply is warranted. It may block arbitrarily long; Runtime.Stop
	// cancels ctx to let a well-behaved implementation return early.
	Handle(ctx context.Context, msg *protocol.Message) (*protocol.Message, error)

	// LastTokenUsage reports the token cost of the most recent Handle call,
	// for InteractionControl accounting.
	LastTokenUsage() int

	// Shutdown releases any resources the engine holds.
	Shutdown(ctx context.Context) error
}

// Hub is the subset of hub.Hub the runtime depends on, kept as an
// interface so the runtime package never imports hub directly (hub already
// depends on registry; this avoids a cycle and keeps the runtime testable
// against a fake).
type Hub interface {
	Inbox(agentID identity.AgentID) (<-chan *protocol.Message, bool)
	Route(msg *protocol.Message) error
	UnregisterAgent(agentID identity.AgentID)
}

// ConversationState is an agent's participation state in one conversation,
// keyed by (peerId, conversationId) per §4.6.
type ConversationState int

const (
	StateIdle ConversationState = iota
	StateProcessing
	StateCooldown
	StateClosed
)

func (s ConversationState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateProcessing:
		return "PROCESSING"
	case StateCooldown:
		return "COOLDOWN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// conversationKey identifies one (peer, conversation) pair.
type conversationKey struct {
	peerID         string
	conversationID string
}

// conversationIDOf derives the conversation a message belongs to. The
// fabric has no separate conversationId field on the wire; a collaboration
// request's own requestId anchors its conversation, and plain peer
// messaging uses the sender as the conversation key, matching the source's
// treatment of a peer-to-peer thread as a single implicit conversation.
func conversationIDOf(msg *protocol.Message) string {
	if msg.Metadata.RequestID != "" {
		return msg.Metadata.RequestID
	}
	return msg.SenderID
}

// Runtime drives one agent's cooperative processing loop.
type Runtime struct {
	agentID  identity.AgentID
	identity *identity.Identity
	hub      Hub
	engine   ReasoningEngine
	control  *ratelimit.Controller
	metadata registry.AgentMetadata

	states map[conversationKey]ConversationState

	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// New builds a Runtime for agentID, consuming msg from hub's inbox and
// dispatching to engine. control governs per-conversation rate/turn limits
// (§4.5); a fresh one is created with ratelimit.DefaultConfig if nil.
func New(id *identity.Identity, metadata registry.AgentMetadata, hub Hub, engine ReasoningEngine, control *ratelimit.Controller) *Runtime {
	if control == nil {
		control = ratelimit.NewController(ratelimit.DefaultConfig())
	}
	return &Runtime{
		agentID:  id.ID(),
		identity: id,
		hub:      hub,
		engine:   engine,
		control:  control,
		metadata: metadata,
		states:   make(map[conversationKey]ConversationState),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run starts the cooperative loop and blocks until Stop is called or the
// inbox is closed. Callers typically invoke this in its own goroutine.
func (r *Runtime) Run() {
	defer close(r.done)

	inbox, ok := r.hub.Inbox(r.agentID)
	if !ok {
		logger.ErrorMsg("runtime: no inbox registered for agent", logger.String("agentId", string(r.agentID)))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	defer cancel()

	for {
		// Check for a pending Stop first, non-blocking: once shutdown has
		// been requested, further messages are drained with a shutdown
		// notice rather than processed normally, even if they were already
		// queued ahead of the stop signal.
		select {
		case <-r.stop:
			r.drain(inbox)
			return
		default:
		}

		select {
		case <-r.stop:
			r.drain(inbox)
			return
		case msg, ok := <-inbox:
			if !ok {
				return
			}
			if msg.MessageType == protocol.MessageTypeStop {
				r.closeConversation(msg)
				continue
			}
			r.process(ctx, msg)
		}
	}
}

func (r *Runtime) process(ctx context.Context, msg *protocol.Message) {
	key := conversationKey{peerID: msg.SenderID, conversationID: conversationIDOf(msg)}

	verdict := r.control.PreCheck()
	if verdict == ratelimit.Wait {
		r.states[key] = StateCooldown
		if inCooldown, until := r.control.InCooldown(); inCooldown {
			r.sleepUntil(ctx, until)
		}
	}

	r.states[key] = StateProcessing

	reply, err := r.handleSpecialOrDispatch(ctx, msg)
	if err != nil {
		reply = r.errorReply(msg, err)
	}

	tokens := r.engine.LastTokenUsage()
	v := r.control.Account(string(r.agentID), key.conversationID, tokens)
	if v == ratelimit.Stop {
		r.states[key] = StateClosed
	} else {
		r.states[key] = StateIdle
	}

	if reply != nil {
		if routeErr := r.hub.Route(reply); routeErr != nil {
			logger.Warn("runtime: failed to route reply", logger.String("agentId", string(r.agentID)), logger.Error(routeErr))
		}
	}

	if v == ratelimit.Stop {
		stop := protocol.New(string(r.agentID), msg.SenderID, "", protocol.MessageTypeStop, time.Now())
		stop.Metadata.RequestID = msg.Metadata.RequestID
		r.sign(stop)
		if routeErr := r.hub.Route(stop); routeErr != nil {
			logger.Warn("runtime: failed to route STOP", logger.String("agentId", string(r.agentID)), logger.Error(routeErr))
		}
	}
}

// handleSpecialOrDispatch implements §4.6's special-case message types that
// bypass the reasoning engine entirely.
func (r *Runtime) handleSpecialOrDispatch(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	switch msg.MessageType {
	case protocol.MessageTypePing:
		return r.pingReply(msg), nil
	case protocol.MessageTypeCapabilityRequest:
		return r.capabilityReply(msg), nil
	default:
		start := time.Now()
		reply, err := r.engine.Handle(ctx, msg)
		metrics.MessageProcessingDuration.Observe(time.Since(start).Seconds())
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.MessagesProcessed.WithLabelValues(string(msg.MessageType), status).Inc()
		return reply, err
	}
}

func (r *Runtime) pingReply(msg *protocol.Message) *protocol.Message {
	reply := protocol.New(string(r.agentID), msg.SenderID, "", protocol.MessageTypePing, time.Now())
	reply.Metadata.RequestID = msg.Metadata.RequestID
	r.sign(reply)
	return reply
}

func (r *Runtime) capabilityReply(msg *protocol.Message) *protocol.Message {
	reply := protocol.New(string(r.agentID), msg.SenderID, "", protocol.MessageTypeCapabilityResponse, time.Now())
	reply.Metadata.RequestID = msg.Metadata.RequestID
	reply.Metadata.Custom = map[string]interface{}{"capabilities": r.metadata.Capabilities}
	r.sign(reply)
	return reply
}

func (r *Runtime) errorReply(original *protocol.Message, cause error) *protocol.Message {
	reply := protocol.New(string(r.agentID), original.SenderID, cause.Error(), protocol.MessageTypeError, time.Now())
	reply.Metadata.RequestID = original.Metadata.RequestID
	r.sign(reply)
	return reply
}

func (r *Runtime) sign(msg *protocol.Message) {
	if err := protocol.NewSigner(r.identity).SignInPlace(msg); err != nil {
		logger.ErrorMsg("runtime: failed to sign synthesized reply", logger.Error(err))
	}
}

func (r *Runtime) closeConversation(msg *protocol.Message) {
	key := conversationKey{peerID: msg.SenderID, conversationID: conversationIDOf(msg)}
	r.states[key] = StateClosed
	r.control.ResetConversation(key.conversationID)
}

func (r *Runtime) sleepUntil(ctx context.Context, until time.Time) {
	d := time.Until(until)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-r.stop:
	}
}

// drain implements the agent-shutdown cancellation semantics of §4.6: every
// message still queued gets an ERROR(AgentShuttingDown) reply back to its
// sender rather than being silently dropped.
func (r *Runtime) drain(inbox <-chan *protocol.Message) {
	for {
		select {
		case msg, ok := <-inbox:
			if !ok {
				return
			}
			reply := r.errorReply(msg, ErrAgentShuttingDown)
			if err := r.hub.Route(reply); err != nil {
				logger.Warn("runtime: failed to notify sender of shutdown", logger.Error(err))
			}
		default:
			return
		}
	}
}

// Stop signals the loop to exit, cancels any in-flight ReasoningEngine.Handle
// call, drains the inbox with shutdown notifications, and unregisters the
// agent from the hub. It blocks until Run has returned.
func (r *Runtime) Stop(ctx context.Context) {
	close(r.stop)
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done

	if err := r.engine.Shutdown(ctx); err != nil {
		logger.Warn("runtime: reasoning engine shutdown error", logger.String("agentId", string(r.agentID)), logger.Error(err))
	}
	r.hub.UnregisterAgent(r.agentID)
}

// State returns the current ConversationState for (peerID, conversationID).
func (r *Runtime) State(peerID, conversationID string) ConversationState {
	return r.states[conversationKey{peerID: peerID, conversationID: conversationID}]
}
