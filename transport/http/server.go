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

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/agentfabric/fabric/health"
	"github.com/agentfabric/fabric/internal/logger"
	"github.com/agentfabric/fabric/internal/metrics"
	"github.com/agentfabric/fabric/registry"
)

// AgentLister is the subset of hub.Hub the admin surface needs for
// discovery — kept as an interface so this package never imports hub
// directly.
type AgentLister interface {
	ListAgents() []*registry.AgentRegistration
}

// Server is the fabric's read-only HTTP admin surface: GET /agents,
// GET /agents?capability=..., GET /healthz, GET /metrics. Every route but
// the last two requires a valid bearer token signed with jwtSecret.
type Server struct {
	hub       AgentLister
	health    *health.HealthChecker
	jwtSecret []byte
	log       logger.Logger

	httpSrv *http.Server
}

// NewServer builds a Server listening on addr once Start is called.
func NewServer(addr string, hub AgentLister, checker *health.HealthChecker, jwtSecret []byte, log logger.Logger) *Server {
	s := &Server{
		hub:       hub,
		health:    checker,
		jwtSecret: jwtSecret,
		log:       log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/agents", requireAuth(jwtSecret, s.handleAgents))
	mux.Handle("/healthz", checker.Handler())
	mux.Handle("/metrics", metrics.Handler())

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	agents := s.hub.ListAgents()

	if capability := r.URL.Query().Get("capability"); capability != "" {
		filtered := agents[:0:0]
		for _, a := range agents {
			if hasCapability(a, capability) {
				filtered = append(filtered, a)
			}
		}
		agents = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(agents); err != nil {
		s.log.Warn("httpapi: failed to encode agents response", logger.Error(err))
	}
}

func hasCapability(a *registry.AgentRegistration, name string) bool {
	for _, c := range a.Capabilities {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called, matching net/http.Server.ListenAndServe's contract.
func (s *Server) Start() error {
	s.log.Info("httpapi: admin surface listening", logger.String("addr", s.httpSrv.Addr))
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
