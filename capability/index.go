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

// Package capability indexes agent capabilities by exact name and, when an
// embedding backend is available, by semantic similarity of their
// descriptions.
package capability

import (
	"context"
	"sort"
	"sync"
)

// AgentID identifies the agent a capability entry belongs to. Defined
// locally (rather than imported from identity) to keep this package usable
// without pulling in the crypto stack — the registry is the only caller
// that needs to reconcile it with identity.AgentID.
type AgentID string

// Scored pairs an agent with a capability-match score in [0,1].
type Scored struct {
	Agent AgentID
	Score float64
}

// ExactIndex is a refcounted map from capability name to the set of agents
// that currently advertise it. Multiple agents may share a capability name;
// an agent's entry is only fully removed once every one of its
// registrations of that name has been unregistered, which is what makes
// Remove idempotent-safe for the registry's reference counting.
type ExactIndex struct {
	mu      sync.RWMutex
	byName  map[string]map[AgentID]int // capability name -> agent -> refcount
}

// NewExactIndex builds an empty ExactIndex.
func NewExactIndex() *ExactIndex {
	return &ExactIndex{byName: make(map[string]map[AgentID]int)}
}

// Add records that agent advertises capability name, incrementing its
// reference count if already present.
func (idx *ExactIndex) Add(name string, agent AgentID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	agents, ok := idx.byName[name]
	if !ok {
		agents = make(map[AgentID]int)
		idx.byName[name] = agents
	}
	agents[agent]++
}

// Remove decrements agent's reference count for capability name, removing
// the entry entirely once the count reaches zero. Calling Remove for a
// name/agent pair that is not present is a no-op.
func (idx *ExactIndex) Remove(name string, agent AgentID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	agents, ok := idx.byName[name]
	if !ok {
		return
	}
	if agents[agent] <= 1 {
		delete(agents, agent)
	} else {
		agents[agent]--
	}
	if len(agents) == 0 {
		delete(idx.byName, name)
	}
}

// RemoveAgent strips every capability entry belonging to agent, regardless
// of refcount. Used when an agent unregisters entirely.
func (idx *ExactIndex) RemoveAgent(agent AgentID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for name, agents := range idx.byName {
		if _, ok := agents[agent]; ok {
			delete(agents, agent)
			if len(agents) == 0 {
				delete(idx.byName, name)
			}
		}
	}
}

// FindByCapabilityName returns every agent currently advertising the exact
// capability name, in no particular order.
func (idx *ExactIndex) FindByCapabilityName(name string) []AgentID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	agents := idx.byName[name]
	out := make([]AgentID, 0, len(agents))
	for agent := range agents {
		out = append(out, agent)
	}
	return out
}

// sortScoredDescending orders results by descending score. The sort is
// stable, so equal scores keep the order in which they were appended; that
// order follows the inputs (map iteration order for the semantic and
// exact-name sets), not registration order.
func sortScoredDescending(results []Scored) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// Index is the fabric's capability index (C3): exact-name lookup backed by
// ExactIndex, and semantic lookup backed by SemanticIndex. A capability's
// embedding is shared across every agent (and every capability name) that
// registers it with identical description text, keyed by the description's
// content hash — registering "summarize" with the same wording from ten
// agents costs one embedding, not ten.
type Index struct {
	exact    *ExactIndex
	semantic *SemanticIndex

	mu             sync.RWMutex
	nameToDescHash map[string]string          // capability name -> description hash
	descHashNames  map[string]map[string]bool // description hash -> capability names sharing it
}

// NewIndex builds an Index. backend may be nil to run semantic search in
// degraded mode.
func NewIndex(backend EmbeddingIndex) *Index {
	return &Index{
		exact:          NewExactIndex(),
		semantic:       NewSemanticIndex(backend),
		nameToDescHash: make(map[string]string),
		descHashNames:  make(map[string]map[string]bool),
	}
}

// Upsert registers that agent advertises capability name with the given
// description, updating both the exact and semantic indices.
func (ix *Index) Upsert(ctx context.Context, name, description string, agent AgentID) error {
	ix.exact.Add(name, agent)

	hash := hashDescription(description)
	ix.mu.Lock()
	ix.nameToDescHash[name] = hash
	if ix.descHashNames[hash] == nil {
		ix.descHashNames[hash] = make(map[string]bool)
	}
	ix.descHashNames[hash][name] = true
	ix.mu.Unlock()

	return ix.semantic.Upsert(ctx, hash, description)
}

// Remove undoes one registration of capability name by agent (refcounted —
// see ExactIndex.Remove). When no capability name anywhere still maps to
// the shared description hash, the embedding itself is also dropped.
func (ix *Index) Remove(ctx context.Context, name string, agent AgentID) error {
	ix.exact.Remove(name, agent)

	ix.mu.Lock()
	hash, ok := ix.nameToDescHash[name]
	if ok {
		if len(ix.exact.FindByCapabilityName(name)) == 0 {
			delete(ix.nameToDescHash, name)
			if names := ix.descHashNames[hash]; names != nil {
				delete(names, name)
				if len(names) == 0 {
					delete(ix.descHashNames, hash)
				}
			}
		}
	}
	stillReferenced := len(ix.descHashNames[hash]) > 0
	ix.mu.Unlock()

	if ok && !stillReferenced {
		return ix.semantic.Remove(ctx, hash)
	}
	return nil
}

// RemoveAgent removes every capability entry belonging to agent.
func (ix *Index) RemoveAgent(agent AgentID) {
	ix.exact.RemoveAgent(agent)
}

// FindByCapabilityName returns every agent advertising the exact capability
// name.
func (ix *Index) FindByCapabilityName(name string) []AgentID {
	return ix.exact.FindByCapabilityName(name)
}

// FindByCapabilityDescription runs a semantic query and expands each
// matched description hash back into the agents registered under any
// capability name sharing that hash, keeping each agent's best score and
// filtering out results below minScore.
func (ix *Index) FindByCapabilityDescription(ctx context.Context, query string, limit int, minScore float64) ([]Scored, error) {
	matches, err := ix.semantic.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	best := make(map[AgentID]float64)
	order := make([]AgentID, 0)
	for _, match := range matches {
		ix.mu.RLock()
		names := ix.descHashNames[match.Key]
		ix.mu.RUnlock()

		for name := range names {
			for _, agent := range ix.exact.FindByCapabilityName(name) {
				if prev, seen := best[agent]; !seen {
					order = append(order, agent)
					best[agent] = match.Score
				} else if match.Score > prev {
					best[agent] = match.Score
				}
			}
		}
	}

	results := make([]Scored, 0, len(order))
	for _, agent := range order {
		if score := best[agent]; score >= minScore {
			results = append(results, Scored{Agent: agent, Score: score})
		}
	}
	sortScoredDescending(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SaveIndex persists the semantic backend's state, a pass-through per §4.3.
func (ix *Index) SaveIndex(ctx context.Context, path string) error {
	return ix.semantic.Persist(ctx, path)
}

// LoadIndex restores the semantic backend's state.
func (ix *Index) LoadIndex(ctx context.Context, path string) error {
	return ix.semantic.Restore(ctx, path)
}
