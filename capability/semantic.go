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

package capability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/agentfabric/fabric/internal/logger"
)

// SemanticIndex provides FindByCapabilityDescription over an optional
// EmbeddingIndex backend, falling back to degradedScore when none is
// configured. It owns the capability-key -> description bookkeeping needed
// to re-embed only on change and to score in degraded mode.
type SemanticIndex struct {
	mu          sync.RWMutex
	backend     EmbeddingIndex
	descByKey   map[string]string // capabilityKey -> description
	hashByKey   map[string]string // capabilityKey -> hash(description) last embedded
	group       singleflight.Group
	degradedLog sync.Once
}

// NewSemanticIndex builds a SemanticIndex. backend may be nil, in which
// case every Query degrades to substring/token-overlap scoring.
func NewSemanticIndex(backend EmbeddingIndex) *SemanticIndex {
	return &SemanticIndex{
		backend:   backend,
		descByKey: make(map[string]string),
		hashByKey: make(map[string]string),
	}
}

func hashDescription(description string) string {
	sum := sha256.Sum256([]byte(description))
	return hex.EncodeToString(sum[:])
}

// Upsert records capabilityKey's description and, if a backend is
// configured and the description actually changed since the last Upsert,
// re-embeds it. Concurrent Upserts for the same (key, description) pair are
// collapsed into a single embed call via singleflight, keyed by the
// description's content hash so that registering the same capability text
// from many agents at once only pays for one embedding.
func (s *SemanticIndex) Upsert(ctx context.Context, capabilityKey, description string) error {
	newHash := hashDescription(description)

	s.mu.Lock()
	s.descByKey[capabilityKey] = description
	unchanged := s.hashByKey[capabilityKey] == newHash
	s.mu.Unlock()

	if s.backend == nil || unchanged {
		return nil
	}

	_, err, _ := s.group.Do(newHash, func() (interface{}, error) {
		if embedErr := s.backend.Upsert(ctx, capabilityKey, description); embedErr != nil {
			return nil, embedErr
		}
		s.mu.Lock()
		s.hashByKey[capabilityKey] = newHash
		s.mu.Unlock()
		return nil, nil
	})
	return err
}

// Remove drops capabilityKey from both the description bookkeeping and the
// embedding backend, if any.
func (s *SemanticIndex) Remove(ctx context.Context, capabilityKey string) error {
	s.mu.Lock()
	delete(s.descByKey, capabilityKey)
	delete(s.hashByKey, capabilityKey)
	s.mu.Unlock()

	if s.backend == nil {
		return nil
	}
	return s.backend.Remove(ctx, capabilityKey)
}

// KeyScore pairs a capability key (a description's content hash, shared by
// every capability name registered with identical text) with a normalized
// [0,1] similarity score.
type KeyScore struct {
	Key   string
	Score float64
}

func sortKeyScoreDescending(results []KeyScore) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// Query returns up to k capability keys matching text, normalized to a
// [0,1] score and sorted descending. It uses the embedding backend when
// configured, otherwise computes degradedScore against every tracked
// description. With a backend, equal scores keep the order the backend
// returned them in; in degraded mode the descriptions are scanned in map
// order, so the order of equal scores is not defined.
func (s *SemanticIndex) Query(ctx context.Context, text string, k int) ([]KeyScore, error) {
	if s.backend != nil {
		return s.queryBackend(ctx, text, k)
	}
	return s.queryDegraded(text, k), nil
}

func (s *SemanticIndex) queryBackend(ctx context.Context, text string, k int) ([]KeyScore, error) {
	matches, err := s.backend.Query(ctx, text, k)
	if err != nil {
		return nil, fmt.Errorf("capability: embedding query failed: %w", err)
	}

	results := make([]KeyScore, 0, len(matches))
	for _, m := range matches {
		score := m.RawScore
		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}
		results = append(results, KeyScore{Key: m.CapabilityKey, Score: score})
	}
	sortKeyScoreDescending(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *SemanticIndex) queryDegraded(text string, k int) []KeyScore {
	s.degradedLog.Do(func() {
		logger.Warn("capability: no EmbeddingIndex configured, semantic search running in degraded substring/token-overlap mode")
	})

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]KeyScore, 0, len(s.descByKey))
	for key, desc := range s.descByKey {
		score := degradedScore(text, desc)
		if score > 0 {
			results = append(results, KeyScore{Key: key, Score: score})
		}
	}
	sortKeyScoreDescending(results)
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Persist forwards to the backend's Persist, a no-op when no backend is
// configured.
func (s *SemanticIndex) Persist(ctx context.Context, path string) error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Persist(ctx, path)
}

// Restore forwards to the backend's Restore, a no-op when no backend is
// configured.
func (s *SemanticIndex) Restore(ctx context.Context, path string) error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Restore(ctx, path)
}
