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
	"sort"
	"strings"
)

// DegradedScore exposes degradedScore for out-of-package EmbeddingIndex
// implementations (e.g. capability/pgindex) that want the same
// substring/token-overlap ranking SemanticIndex falls back to, so scoring
// behaves identically whether or not a given backend is in the loop.
func DegradedScore(query, description string) float64 {
	return degradedScore(query, description)
}

// SortRawMatchesDescending orders RawMatch results by descending score, for
// EmbeddingIndex implementations that compute scores without a natural
// ordering of their own (stable, so equal-score entries keep the order the
// caller produced them in).
func SortRawMatchesDescending(matches []RawMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].RawScore > matches[j].RawScore
	})
}

// degradedScore computes a substring-and-token-overlap similarity between a
// query and a capability description when no EmbeddingIndex is configured.
// It is intentionally crude — this path exists so capability search keeps
// working, not so it works well — but it must still produce a score in
// [0,1] so callers can apply minScore thresholds uniformly regardless of
// which scoring path served a query.
func degradedScore(query, description string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	d := strings.ToLower(strings.TrimSpace(description))
	if q == "" || d == "" {
		return 0
	}

	var score float64
	if strings.Contains(d, q) {
		// A direct substring hit is a strong signal; scale by how much of
		// the description it covers so a short exact match on a long
		// description doesn't appear as confident as a near-complete one.
		score = 0.5 + 0.5*float64(len(q))/float64(len(d))
		if score > 1 {
			score = 1
		}
	}

	tokenScore := tokenOverlapScore(q, d)
	if tokenScore > score {
		score = tokenScore
	}
	return score
}

// tokenOverlapScore is the Jaccard index of the query's and description's
// whitespace-tokenized word sets.
func tokenOverlapScore(query, description string) float64 {
	qTokens := tokenSet(query)
	dTokens := tokenSet(description)
	if len(qTokens) == 0 || len(dTokens) == 0 {
		return 0
	}

	intersection := 0
	for tok := range qTokens {
		if dTokens[tok] {
			intersection++
		}
	}
	union := len(qTokens) + len(dTokens) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
