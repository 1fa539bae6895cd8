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

package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agentfabric/fabric/capability"
	"github.com/agentfabric/fabric/identity"
	"github.com/agentfabric/fabric/internal/metrics"
)

// Registry errors.
var (
	ErrAlreadyRegistered = errors.New("registry: agent already registered")
	ErrUnverifiedIdentity = errors.New("registry: identity not verified")
	ErrNotFound           = errors.New("registry: agent not found")
)

// DefaultLivenessWindow is how long an agent may go without a routed
// message before IsActive reports false. The source system never settled
// on a single liveness mechanism (see the implementer's note this default
// resolves); last-message-timestamp is the simplest one that needs no
// separate heartbeat protocol.
const DefaultLivenessWindow = 5 * time.Minute

// Registry is the fabric's directory of live agents (C4). All operations
// are safe for concurrent callers: reads run in parallel under an RWMutex,
// writes (Register/Unregister) are serialized, and a registration's
// capability-index update happens inside the same write critical section
// per §4.3.
type Registry struct {
	mu             sync.RWMutex
	agents         map[identity.AgentID]*AgentRegistration
	index          *capability.Index
	livenessWindow time.Duration

	expiryStop chan struct{}
	expiryDone chan struct{}
}

// New builds an empty Registry. backend may be nil to run the capability
// index's semantic search in degraded mode. New starts a background janitor
// that unregisters agents that exceed the liveness window; call Stop to shut
// it down.
func New(backend capability.EmbeddingIndex) *Registry {
	r := &Registry{
		agents:         make(map[identity.AgentID]*AgentRegistration),
		index:          capability.NewIndex(backend),
		livenessWindow: DefaultLivenessWindow,
		expiryStop:     make(chan struct{}),
		expiryDone:     make(chan struct{}),
	}
	go r.runExpiryJanitor()
	return r
}

// Stop shuts down the expiry janitor. Safe to call once.
func (r *Registry) Stop() {
	close(r.expiryStop)
	<-r.expiryDone
}

// runExpiryJanitor periodically drops agents that have exceeded the
// liveness window without being Touch-ed, mirroring the hub's own
// retention-window janitor (hub.Hub.runJanitor).
func (r *Registry) runExpiryJanitor() {
	defer close(r.expiryDone)

	r.mu.RLock()
	interval := r.livenessWindow / 5
	r.mu.RUnlock()
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.expireStaleAgents()
		case <-r.expiryStop:
			return
		}
	}
}

func (r *Registry) expireStaleAgents() {
	r.mu.Lock()
	var stale []identity.AgentID
	now := time.Now()
	for id, reg := range r.agents {
		if now.Sub(reg.lastSeen) > r.livenessWindow {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		r.index.RemoveAgent(capability.AgentID(id))
		delete(r.agents, id)
	}
	r.mu.Unlock()

	for range stale {
		metrics.AgentsExpired.Inc()
		metrics.AgentsActive.Dec()
	}
}

// SetLivenessWindow overrides the default window IsActive uses.
func (r *Registry) SetLivenessWindow(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.livenessWindow = d
}

// Register records ref as a new registration. The referenced identity must
// already be verified (identity.New/CreateKeyBased/FromPublicKey all set
// this); registering twice under the same agent id fails rather than
// silently overwriting metadata — callers that want to update a profile
// must Unregister first.
func (r *Registry) Register(ctx context.Context, ref AgentRef) (*AgentRegistration, error) {
	if ref.Identity == nil || !ref.Identity.Verified() {
		metrics.RegistrationsTotal.WithLabelValues("failure").Inc()
		return nil, ErrUnverifiedIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	agentID := ref.Metadata.AgentID
	if _, exists := r.agents[agentID]; exists {
		metrics.RegistrationsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, agentID)
	}

	now := time.Now()
	reg := &AgentRegistration{
		AgentMetadata: ref.Metadata,
		Identity:      ref.Identity,
		OwnerID:       ref.OwnerID,
		RegisteredAt:  now,
		lastSeen:      now,
	}
	r.agents[agentID] = reg

	for _, c := range ref.Metadata.Capabilities {
		if err := r.index.Upsert(ctx, c.Name, c.Description, capability.AgentID(agentID)); err != nil {
			delete(r.agents, agentID)
			metrics.RegistrationsTotal.WithLabelValues("failure").Inc()
			return nil, fmt.Errorf("registry: index capability %q: %w", c.Name, err)
		}
	}

	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	metrics.AgentsActive.Inc()
	return reg, nil
}

// Unregister removes agentID's metadata and its capability-index entries.
// Calling Unregister for an agent that is not registered is a no-op, which
// is what makes Register;Unregister;Register observationally equivalent to
// a single Register (§8).
func (r *Registry) Unregister(agentID identity.AgentID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agentID]; !exists {
		return
	}
	r.index.RemoveAgent(capability.AgentID(agentID))
	delete(r.agents, agentID)
	metrics.AgentsUnregistered.Inc()
	metrics.AgentsActive.Dec()
}

// Get returns the registration for agentID, if any.
func (r *Registry) Get(agentID identity.AgentID) (*AgentRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.agents[agentID]
	return reg, ok
}

// GetByCapability returns every registered agent advertising the exact
// capability name.
func (r *Registry) GetByCapability(name string) []*AgentRegistration {
	start := time.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	agentIDs := r.index.FindByCapabilityName(name)
	out := make([]*AgentRegistration, 0, len(agentIDs))
	for _, id := range agentIDs {
		if reg, ok := r.agents[identity.AgentID(id)]; ok {
			out = append(out, reg)
		}
	}
	metrics.CapabilitySearchDuration.WithLabelValues("exact").Observe(time.Since(start).Seconds())
	metrics.CapabilitySearchResults.WithLabelValues("exact").Observe(float64(len(out)))
	return out
}

// DescriptionSearchOptions filters GetByCapabilityDescription results.
type DescriptionSearchOptions struct {
	// RequesterID is excluded from results (an agent never discovers
	// itself).
	RequesterID identity.AgentID
	Limit       int
	MinScore    float64
}

// GetByCapabilityDescription runs a semantic capability search and applies
// the registry-level filters §4.3 requires: exclude the requester itself,
// exclude inactive agents, and exclude agents currently in a recent-timeout
// cooldown with the requester (recentTimeout is supplied by the hub/runtime,
// which tracks it per §4.6; the registry has no notion of conversation
// state of its own).
func (r *Registry) GetByCapabilityDescription(ctx context.Context, query string, opts DescriptionSearchOptions, inCooldownWithRequester func(identity.AgentID) bool) ([]capability.Scored, error) {
	start := time.Now()
	r.mu.RLock()
	matches, err := r.index.FindByCapabilityDescription(ctx, query, opts.Limit, opts.MinScore)
	r.mu.RUnlock()
	metrics.CapabilitySearchDuration.WithLabelValues("semantic").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	filtered := make([]capability.Scored, 0, len(matches))
	for _, m := range matches {
		agentID := identity.AgentID(m.Agent)
		if agentID == opts.RequesterID {
			continue
		}
		if !r.IsActive(agentID) {
			continue
		}
		if inCooldownWithRequester != nil && inCooldownWithRequester(agentID) {
			continue
		}
		filtered = append(filtered, m)
	}
	metrics.CapabilitySearchResults.WithLabelValues("semantic").Observe(float64(len(filtered)))
	return filtered, nil
}

// GetByOrganization returns every registered agent belonging to orgID.
func (r *Registry) GetByOrganization(orgID string) []*AgentRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*AgentRegistration
	for _, reg := range r.agents {
		if reg.OrganizationID == orgID {
			out = append(out, reg)
		}
	}
	return out
}

// Touch records that a message was just routed for agentID, advancing its
// liveness timestamp. The hub calls this on every successful Route.
func (r *Registry) Touch(agentID identity.AgentID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.agents[agentID]; ok {
		reg.lastSeen = time.Now()
	}
}

// IsActive reports whether agentID is registered and has been seen within
// the liveness window.
func (r *Registry) IsActive(agentID identity.AgentID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.agents[agentID]
	if !ok {
		return false
	}
	return time.Since(reg.lastSeen) <= r.livenessWindow
}

// SaveIndex persists the capability index's semantic backend.
func (r *Registry) SaveIndex(ctx context.Context, path string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.SaveIndex(ctx, path)
}

// LoadIndex restores the capability index's semantic backend.
func (r *Registry) LoadIndex(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index.LoadIndex(ctx, path)
}

// Count returns the number of currently registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
