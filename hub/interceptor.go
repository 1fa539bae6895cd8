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

package hub

import (
	"sync"

	"github.com/agentfabric/fabric/identity"
	"github.com/agentfabric/fabric/internal/logger"
	"github.com/agentfabric/fabric/protocol"
)

// interceptorDispatcher runs interceptor callbacks on a dedicated worker so
// they never block the routing critical path (§4.4 step 5): Route enqueues
// a dispatch job and returns immediately, the worker drains the queue and
// invokes every applicable interceptor, logging (not propagating) errors.
type interceptorDispatcher struct {
	mu     sync.RWMutex
	global []Interceptor
	byAgent map[identity.AgentID][]Interceptor

	jobs chan dispatchJob
	done chan struct{}
	sink ObservabilitySink
}

type dispatchJob struct {
	msg *protocol.Message
}

func newInterceptorDispatcher(sink ObservabilitySink, queueDepth int) *interceptorDispatcher {
	d := &interceptorDispatcher{
		byAgent: make(map[identity.AgentID][]Interceptor),
		jobs:    make(chan dispatchJob, queueDepth),
		done:    make(chan struct{}),
		sink:    sink,
	}
	go d.run()
	return d
}

func (d *interceptorDispatcher) run() {
	for {
		select {
		case job := <-d.jobs:
			d.dispatch(job.msg)
		case <-d.done:
			return
		}
	}
}

func (d *interceptorDispatcher) dispatch(msg *protocol.Message) {
	d.mu.RLock()
	global := append([]Interceptor(nil), d.global...)
	perAgent := append([]Interceptor(nil), d.byAgent[identity.AgentID(msg.ReceiverID)]...)
	d.mu.RUnlock()

	for _, fn := range append(global, perAgent...) {
		if err := fn(msg); err != nil {
			logger.Warn("hub: interceptor returned an error", logger.Error(err))
			if d.sink != nil {
				d.sink.OnInterceptorError(err)
			}
		}
	}
}

// enqueue submits msg for interceptor processing. If the worker is
// backlogged, the job is dropped rather than blocking the router — per
// §4.4, interceptor dispatch is explicitly best-effort.
func (d *interceptorDispatcher) enqueue(msg *protocol.Message) {
	select {
	case d.jobs <- dispatchJob{msg: msg}:
	default:
	}
}

func (d *interceptorDispatcher) addGlobal(fn Interceptor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.global = append(d.global, fn)
}

func (d *interceptorDispatcher) addAgent(id identity.AgentID, fn Interceptor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byAgent[id] = append(d.byAgent[id], fn)
}

func (d *interceptorDispatcher) removeAgent(id identity.AgentID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byAgent, id)
}

func (d *interceptorDispatcher) stop() {
	close(d.done)
}
