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
	"fmt"
	"sync"
	"time"

	"github.com/agentfabric/fabric/identity"
	"github.com/agentfabric/fabric/internal/logger"
	"github.com/agentfabric/fabric/internal/metrics"
	"github.com/agentfabric/fabric/protocol"
	"github.com/agentfabric/fabric/registry"
)

// agentHandle is the hub-side record of a live registered agent: the
// send half of its inbox, plus the recent-timeout bookkeeping
// GetByCapabilityDescription consults to avoid re-offering a partner who
// just timed out a request with the caller.
type agentHandle struct {
	id    identity.AgentID
	inbox chan *protocol.Message

	mu                    sync.Mutex
	recentTimeoutPartners map[identity.AgentID]time.Time
}

// recentTimeoutCooldown is how long a target agent is excluded from a
// requester's discovery results after a timed-out request between them.
const recentTimeoutCooldown = 2 * time.Minute

func newAgentHandle(id identity.AgentID, capacity int) *agentHandle {
	return &agentHandle{
		id:                    id,
		inbox:                 make(chan *protocol.Message, capacity),
		recentTimeoutPartners: make(map[identity.AgentID]time.Time),
	}
}

func (h *agentHandle) markTimeoutPartner(partner identity.AgentID, ttl time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recentTimeoutPartners[partner] = time.Now().Add(ttl)
}

func (h *agentHandle) isRecentTimeoutPartner(partner identity.AgentID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	until, ok := h.recentTimeoutPartners[partner]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(h.recentTimeoutPartners, partner)
		return false
	}
	return true
}

// Hub is the fabric's communication hub (C5).
type Hub struct {
	registry *registry.Registry

	mu     sync.RWMutex
	agents map[identity.AgentID]*agentHandle
	closed bool

	pending         *pendingTable
	interceptors    *interceptorDispatcher
	sink            ObservabilitySink
	retentionWindow time.Duration
	inboxCapacity   int
	verifier        *protocol.Verifier

	// systemIdentity signs synthetic ERROR notifications the hub emits on
	// routing failures (unknown receiver, bad signature, collaboration
	// loop) — these never originate from an agent, so the hub needs its
	// own signing identity to produce a well-formed, verifiable envelope.
	systemIdentity *identity.Identity

	janitorStop chan struct{}
	janitorDone chan struct{}
}

// Option configures a Hub at construction time.
type Option func(*Hub)

// WithObservabilitySink registers a sink for routing, interceptor-error and
// late-response notifications. The hub never calls the sink's OnCooldown:
// cooldowns start in a ratelimit.Controller and reach a sink only through
// that controller's OnCooldown listener.
func WithObservabilitySink(sink ObservabilitySink) Option {
	return func(h *Hub) { h.sink = sink }
}

// WithRetentionWindow overrides DefaultRetentionWindow.
func WithRetentionWindow(d time.Duration) Option {
	return func(h *Hub) { h.retentionWindow = d }
}

// WithInboxCapacity overrides DefaultInboxCapacity for every agent this hub
// registers.
func WithInboxCapacity(n int) Option {
	return func(h *Hub) { h.inboxCapacity = n }
}

// New builds a Hub wrapping reg for registration and discovery.
func New(reg *registry.Registry, opts ...Option) (*Hub, error) {
	sysID, err := identity.CreateKeyBased()
	if err != nil {
		return nil, fmt.Errorf("hub: create system identity: %w", err)
	}

	h := &Hub{
		registry:        reg,
		agents:          make(map[identity.AgentID]*agentHandle),
		pending:         newPendingTable(),
		retentionWindow: DefaultRetentionWindow,
		inboxCapacity:   DefaultInboxCapacity,
		verifier:        protocol.NewVerifier(),
		systemIdentity:  sysID,
		janitorStop:     make(chan struct{}),
		janitorDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.interceptors = newInterceptorDispatcher(h.sink, 1024)

	go h.runJanitor()
	return h, nil
}

// RegisterAgent wraps Registry.Register and wires an inbox channel for the
// newly joined agent.
func (h *Hub) RegisterAgent(ctx context.Context, ref registry.AgentRef) (*registry.AgentRegistration, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubShutdown
	}
	if _, exists := h.agents[ref.Metadata.AgentID]; exists {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, ref.Metadata.AgentID)
	}
	h.mu.Unlock()

	reg, err := h.registry.Register(ctx, ref)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.agents[ref.Metadata.AgentID] = newAgentHandle(ref.Metadata.AgentID, h.inboxCapacity)
	h.mu.Unlock()

	return reg, nil
}

// UnregisterAgent closes the agent's inbox (notifying any senders whose
// messages are still queued is the runtime's job, not the hub's — the hub
// only removes routing state), cancels its pending requests, and removes
// it from the registry.
func (h *Hub) UnregisterAgent(agentID identity.AgentID) {
	h.mu.Lock()
	handle, exists := h.agents[agentID]
	if exists {
		delete(h.agents, agentID)
	}
	h.mu.Unlock()

	if !exists {
		return
	}
	close(handle.inbox)
	h.pending.cancelAllForAgent(string(agentID))
	h.interceptors.removeAgent(agentID)
	h.registry.Unregister(agentID)
}

// Inbox returns the receive side of agentID's inbox, for its runtime loop
// to pull from. Returns false if the agent is not registered.
func (h *Hub) Inbox(agentID identity.AgentID) (<-chan *protocol.Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handle, ok := h.agents[agentID]
	if !ok {
		return nil, false
	}
	return handle.inbox, true
}

// Route is the hub's synchronous entry point (§4.4): verify, authorize,
// enqueue, correlate. It returns once the message is enqueued (or
// rejected); downstream delivery and processing happen asynchronously in
// the receiver's runtime.
func (h *Hub) Route(msg *protocol.Message) error {
	metrics.RoutesAttempted.WithLabelValues(string(msg.MessageType)).Inc()

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubShutdown
	}
	receiver, receiverOK := h.agents[identity.AgentID(msg.ReceiverID)]
	h.mu.RUnlock()

	// Step 1: unknown receiver.
	if !receiverOK {
		metrics.RoutesFailed.WithLabelValues("unknown_receiver").Inc()
		h.notifySenderError(msg, "UnknownReceiver", fmt.Sprintf("receiver %s is not registered", msg.ReceiverID))
		return ErrUnknownReceiver
	}

	// Step 2: signature verification against the sender's registered identity.
	verifyStart := time.Now()
	senderReg, senderOK := h.registry.Get(identity.AgentID(msg.SenderID))
	verified := false
	if senderOK {
		verified = h.verifier.Verify(msg, senderReg.Identity) == nil
		status := "invalid"
		if verified {
			status = "valid"
		}
		metrics.SignatureVerifications.WithLabelValues(status).Inc()
	}
	if !verified {
		metrics.RouteDuration.WithLabelValues("verify").Observe(time.Since(verifyStart).Seconds())
		metrics.RoutesFailed.WithLabelValues("auth_failure").Inc()
		h.notifySenderError(msg, "AuthenticationFailure", "signature verification failed")
		return ErrAuthenticationFailure
	}
	metrics.RouteDuration.WithLabelValues("verify").Observe(time.Since(verifyStart).Seconds())

	// Step 3: collaboration-chain loop prevention. The hub is the sole
	// authority that appends to the chain; agents must never mutate it
	// themselves.
	collabStart := time.Now()
	if msg.IsCollaborationRequest() {
		if msg.ChainContains(msg.ReceiverID) {
			metrics.RouteDuration.WithLabelValues("collaboration_check").Observe(time.Since(collabStart).Seconds())
			metrics.RoutesFailed.WithLabelValues("collaboration_loop").Inc()
			h.notifySenderError(msg, "CollaborationLoop", fmt.Sprintf("%s already in collaboration chain", msg.ReceiverID))
			return ErrCollaborationLoop
		}
		msg.Metadata.CollaborationChain = append(msg.Metadata.CollaborationChain, msg.SenderID)
	}
	metrics.RouteDuration.WithLabelValues("collaboration_check").Observe(time.Since(collabStart).Seconds())

	// Step 4: bounded enqueue with backpressure.
	enqueueStart := time.Now()
	select {
	case receiver.inbox <- msg:
	default:
		metrics.RouteDuration.WithLabelValues("enqueue").Observe(time.Since(enqueueStart).Seconds())
		metrics.RoutesFailed.WithLabelValues("backpressure").Inc()
		metrics.RoutesCompleted.WithLabelValues("backpressure").Inc()
		return ErrBackpressure
	}
	metrics.RouteDuration.WithLabelValues("enqueue").Observe(time.Since(enqueueStart).Seconds())

	h.registry.Touch(identity.AgentID(msg.SenderID))

	// Step 5: best-effort interceptor fan-out, off the critical path.
	dispatchStart := time.Now()
	h.interceptors.enqueue(msg)
	if h.sink != nil {
		h.sink.OnRouted(msg)
	}

	// Steps 6-7: request/response correlation.
	if msg.Metadata.RequestID != "" && isTerminalReply(msg.MessageType) {
		wasLate, ok := h.pending.complete(msg.Metadata.RequestID, msg)
		if ok && wasLate && h.sink != nil {
			h.sink.OnLateResponse(msg.Metadata.RequestID)
		}
	}
	metrics.RouteDuration.WithLabelValues("dispatch").Observe(time.Since(dispatchStart).Seconds())

	metrics.RoutesCompleted.WithLabelValues("delivered").Inc()
	return nil
}

// ErrMissingRequestID is returned by SendAndWait when request has no
// Metadata.RequestID. The id must be assigned (e.g. via
// protocol.CollaborationProtocol.FormatRequest, or uuid.NewString for a
// plain request) before the message is signed — SendAndWait cannot assign
// one itself without invalidating the caller's signature.
var ErrMissingRequestID = fmt.Errorf("hub: request message has no requestId")

// SendAndWait routes request and blocks until a matching response arrives,
// timeout elapses, or ctx is cancelled. On timeout the PendingRequest is
// kept around (status TIMED_OUT) for retentionWindow so a response that
// arrives after the caller gave up can still be retrieved via
// CheckLateResult (§4.4's late-delivery handling).
func (h *Hub) SendAndWait(ctx context.Context, request *protocol.Message, timeout time.Duration) (*protocol.Message, RequestStatus, string, error) {
	if request.Metadata.RequestID == "" {
		return nil, StatusFailed, "", ErrMissingRequestID
	}
	requestID := request.Metadata.RequestID

	now := time.Now()
	p := &PendingRequest{
		RequestID:   requestID,
		RequesterID: identity.AgentID(request.SenderID),
		TargetID:    identity.AgentID(request.ReceiverID),
		CreatedAt:   now,
		Deadline:    now.Add(timeout),
		done:        make(chan struct{}),
	}
	h.pending.put(p)

	if err := h.Route(request); err != nil {
		h.pending.delete(requestID)
		return nil, StatusFailed, requestID, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		status, response, _ := h.pending.snapshot(requestID)
		return response, status, requestID, nil
	case <-timer.C:
		h.pending.timeout(requestID)
		h.markTimeoutPartner(p.RequesterID, p.TargetID)
		return nil, StatusTimedOut, requestID, nil
	case <-ctx.Done():
		h.pending.timeout(requestID)
		h.markTimeoutPartner(p.RequesterID, p.TargetID)
		return nil, StatusTimedOut, requestID, ctx.Err()
	}
}

// markTimeoutPartner records that requester's request to target just timed
// out, so Find briefly excludes target from that requester's discovery
// results rather than immediately re-offering a partner that just stalled.
func (h *Hub) markTimeoutPartner(requester, target identity.AgentID) {
	h.mu.RLock()
	handle, ok := h.agents[requester]
	h.mu.RUnlock()
	if !ok {
		return
	}
	handle.markTimeoutPartner(target, recentTimeoutCooldown)
}

// CheckLateResult polls for a response that arrived after SendAndWait gave
// up on requestID, so long as it is still within retentionWindow of its
// deadline.
func (h *Hub) CheckLateResult(requestID string) (RequestStatus, *protocol.Message) {
	status, response, ok := h.pending.snapshot(requestID)
	if !ok {
		return StatusFailed, nil
	}
	return status, response
}

func isTerminalReply(t protocol.MessageType) bool {
	return t == protocol.MessageTypeResponse || t == protocol.MessageTypeResponseCollaboration || t == protocol.MessageTypeError
}

// notifySenderError synthesizes and routes an ERROR message back to the
// original sender, signed by the hub's own system identity. Failures here
// (e.g. sender itself unregistered, or its inbox full) are swallowed — the
// caller of Route already has the real error to act on.
func (h *Hub) notifySenderError(original *protocol.Message, kind, detail string) {
	h.mu.RLock()
	senderHandle, ok := h.agents[identity.AgentID(original.SenderID)]
	h.mu.RUnlock()
	if !ok {
		return
	}

	errMsg := protocol.New(string(h.systemIdentity.ID()), original.SenderID, detail, protocol.MessageTypeError, time.Now())
	errMsg.Metadata.Custom = map[string]interface{}{"errorKind": kind, "originalMessageId": original.ID}
	if original.Metadata.RequestID != "" {
		errMsg.Metadata.RequestID = original.Metadata.RequestID
	}
	if err := protocol.NewSigner(h.systemIdentity).SignInPlace(errMsg); err != nil {
		logger.ErrorMsg("hub: failed to sign system error notification", logger.Error(err))
		return
	}

	select {
	case senderHandle.inbox <- errMsg:
	default:
		logger.Warn("hub: dropped error notification, sender inbox full", logger.String("sender", original.SenderID))
	}
}

// AddGlobalInterceptor registers fn to observe every routed message.
func (h *Hub) AddGlobalInterceptor(fn Interceptor) {
	h.interceptors.addGlobal(fn)
}

// AddAgentInterceptor registers fn to observe messages routed to agentID.
func (h *Hub) AddAgentInterceptor(agentID identity.AgentID, fn Interceptor) {
	h.interceptors.addAgent(agentID, fn)
}

// ListAgents forwards discovery to the registry; it has no filter of its
// own, that lives in registry.Registry.
func (h *Hub) ListAgents() []*registry.AgentRegistration {
	h.mu.RLock()
	ids := make([]identity.AgentID, 0, len(h.agents))
	for id := range h.agents {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	out := make([]*registry.AgentRegistration, 0, len(ids))
	for _, id := range ids {
		if reg, ok := h.registry.Get(id); ok {
			out = append(out, reg)
		}
	}
	return out
}

// Find runs a semantic capability search via the registry, excluding the
// requester and any partner currently in a recent-timeout cooldown with it.
func (h *Hub) Find(ctx context.Context, requesterID identity.AgentID, query string, limit int, minScore float64) ([]registry.DiscoveryResult, error) {
	h.mu.RLock()
	requesterHandle, ok := h.agents[requesterID]
	h.mu.RUnlock()

	var inCooldown func(identity.AgentID) bool
	if ok {
		inCooldown = requesterHandle.isRecentTimeoutPartner
	}

	matches, err := h.registry.GetByCapabilityDescription(ctx, query, registry.DescriptionSearchOptions{
		RequesterID: requesterID,
		Limit:       limit,
		MinScore:    minScore,
	}, inCooldown)
	if err != nil {
		return nil, err
	}

	results := make([]registry.DiscoveryResult, 0, len(matches))
	for _, m := range matches {
		reg, found := h.registry.Get(identity.AgentID(m.Agent))
		if !found {
			continue
		}
		results = append(results, registry.DiscoveryResult{
			AgentID:        reg.AgentID,
			OrganizationID: reg.OrganizationID,
			AgentType:      reg.AgentType,
			Capabilities:   reg.Capabilities,
			PaymentAddress: reg.PaymentAddress,
			Score:          m.Score,
		})
	}
	return results, nil
}

// Stop begins an orderly shutdown: no further Register/Route is accepted,
// every outstanding SendAndWait is cancelled, the janitor worker is joined,
// and the interceptor worker is signalled to stop (Stop does not wait for
// it).
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	ids := make([]identity.AgentID, 0, len(h.agents))
	for id := range h.agents {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.pending.cancelAllForAgent(string(id))
	}

	close(h.janitorStop)
	<-h.janitorDone
	h.interceptors.stop()
}

func (h *Hub) runJanitor() {
	defer close(h.janitorDone)
	ticker := time.NewTicker(h.retentionWindow / 10)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.pending.evictOlderThan(time.Now().Add(-h.retentionWindow))
		case <-h.janitorStop:
			return
		}
	}
}
