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
	// RoutesAttempted tracks every hub.Route call, win or lose.
	RoutesAttempted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "attempted_total",
			Help:      "Total number of messages submitted to the hub for routing",
		},
		[]string{"message_type"},
	)

	// RoutesCompleted tracks routing outcomes.
	RoutesCompleted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "completed_total",
			Help:      "Total number of routed messages by outcome",
		},
		[]string{"status"}, // delivered, backpressure
	)

	// RoutesFailed tracks routing rejections by reason.
	RoutesFailed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "failed_total",
			Help:      "Total number of routing failures by reason",
		},
		[]string{"reason"}, // unknown_receiver, auth_failure, collaboration_loop, backpressure
	)

	// RouteDuration tracks how long Hub.Route takes per stage.
	RouteDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "duration_seconds",
			Help:      "Hub.Route stage duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 2s
		},
		[]string{"stage"}, // verify, collaboration_check, enqueue, dispatch
	)
)
