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

// Package metrics exposes the fabric's Prometheus instrumentation: one
// registry shared by every subsystem's metric vectors (routing.go,
// registry.go, message.go, crypto.go) plus an HTTP handler for scraping.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "fabric"

// Registry is the Prometheus registry every metric in this package is
// registered against, kept distinct from the global default registry so a
// host process can embed the fabric without colliding with its own metrics.
var Registry = prometheus.NewRegistry()
