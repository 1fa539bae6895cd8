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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegistrationsTotal tracks agent registrations against the registry.
	RegistrationsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "registrations_total",
			Help:      "Total number of agent registrations by outcome",
		},
		[]string{"status"}, // success, failure
	)

	// AgentsActive tracks the current number of registered agents.
	AgentsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "agents_active",
			Help:      "Number of currently registered agents",
		},
	)

	// AgentsExpired tracks agents dropped for exceeding the liveness window.
	AgentsExpired = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "agents_expired_total",
			Help:      "Total number of agents expired for exceeding the liveness window",
		},
	)

	// AgentsUnregistered tracks explicit unregistrations.
	AgentsUnregistered = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "agents_unregistered_total",
			Help:      "Total number of explicit agent unregistrations",
		},
	)

	// CapabilitySearchDuration tracks capability discovery latency.
	CapabilitySearchDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "capability_search_duration_seconds",
			Help:      "Capability discovery operation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to 1.6s
		},
		[]string{"operation"}, // exact, semantic
	)

	// CapabilitySearchResults tracks how many matches a discovery query returned.
	CapabilitySearchResults = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "capability_search_results",
			Help:      "Number of matches returned by a capability discovery query",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		},
		[]string{"operation"},
	)
)
