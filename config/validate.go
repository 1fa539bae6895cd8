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

package config

import "fmt"

// ValidationIssue is one problem found while validating a Config.
// Level is either "error" (Load fails) or "warning" (Load proceeds).
type ValidationIssue struct {
	Field   string
	Message string
	Level   string
}

// ValidateConfiguration checks cfg for invalid or inconsistent values.
func ValidateConfiguration(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Hub != nil && cfg.Hub.InboxCapacity <= 0 {
		issues = append(issues, ValidationIssue{
			Field:   "hub.inbox_capacity",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Hub.InboxCapacity),
			Level:   "error",
		})
	}

	if cfg.Registry != nil {
		if cfg.Registry.SemanticMinScore < 0 || cfg.Registry.SemanticMinScore > 1 {
			issues = append(issues, ValidationIssue{
				Field:   "registry.semantic_min_score",
				Message: fmt.Sprintf("must be between 0 and 1, got %f", cfg.Registry.SemanticMinScore),
				Level:   "error",
			})
		}
		if cfg.Registry.LivenessWindow <= 0 {
			issues = append(issues, ValidationIssue{
				Field:   "registry.liveness_window",
				Message: "must be positive",
				Level:   "error",
			})
		}
	}

	if cfg.RateLimit != nil {
		if cfg.RateLimit.PerMinuteTokens <= 0 {
			issues = append(issues, ValidationIssue{
				Field:   "rate_limit.per_minute_tokens",
				Message: "must be positive",
				Level:   "error",
			})
		}
		if cfg.RateLimit.MaxTurns <= 0 {
			issues = append(issues, ValidationIssue{
				Field:   "rate_limit.max_turns",
				Message: "must be positive",
				Level:   "warning",
			})
		}
	}

	if cfg.KeyStore != nil && cfg.KeyStore.Type != "file" && cfg.KeyStore.Type != "memory" {
		issues = append(issues, ValidationIssue{
			Field:   "keystore.type",
			Message: fmt.Sprintf("unknown keystore type %q, expected \"file\" or \"memory\"", cfg.KeyStore.Type),
			Level:   "warning",
		})
	}

	return issues
}
