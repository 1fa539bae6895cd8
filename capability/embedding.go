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

import "context"

// EmbeddingIndex is the dependency-injection point for semantic capability
// search: an external embedding/vector-similarity backend the fabric itself
// does not implement. capability/pgindex provides one real implementation;
// in its absence SemanticIndex falls back to degradedScore.
type EmbeddingIndex interface {
	// Upsert (re-)embeds text under capabilityKey. Implementations should
	// treat this as a no-op when text is unchanged from the last Upsert for
	// the same key, since SemanticIndex already dedupes upstream of this
	// call by content hash.
	Upsert(ctx context.Context, capabilityKey, text string) error

	// Remove deletes any embedding stored under capabilityKey.
	Remove(ctx context.Context, capabilityKey string) error

	// Query returns up to k (capabilityKey, rawScore) pairs most similar to
	// text, in whatever order the backend finds natural — SemanticIndex
	// re-sorts and normalizes before returning results to callers.
	Query(ctx context.Context, text string, k int) ([]RawMatch, error)

	// Persist writes the index's state to path.
	Persist(ctx context.Context, path string) error

	// Restore loads the index's state from path, replacing any in-memory
	// state.
	Restore(ctx context.Context, path string) error
}

// RawMatch is a single unnormalized result from an EmbeddingIndex.Query.
type RawMatch struct {
	CapabilityKey string
	RawScore      float64
}
