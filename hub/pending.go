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
	"hash/fnv"
	"sync"
	"time"

	"github.com/agentfabric/fabric/protocol"
)

// pendingShardCount is the number of stripes the PendingRequest table is
// split across, to keep hub-wide contention off the hot routing path
// (§5's "striped map (shard per hash of requestId)").
const pendingShardCount = 32

type pendingShard struct {
	mu    sync.Mutex
	byReq map[string]*PendingRequest
}

// pendingTable is the hub's striped PendingRequest store.
type pendingTable struct {
	shards [pendingShardCount]*pendingShard
}

func newPendingTable() *pendingTable {
	t := &pendingTable{}
	for i := range t.shards {
		t.shards[i] = &pendingShard{byReq: make(map[string]*PendingRequest)}
	}
	return t
}

func (t *pendingTable) shardFor(requestID string) *pendingShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(requestID))
	return t.shards[h.Sum32()%pendingShardCount]
}

func (t *pendingTable) put(p *PendingRequest) {
	shard := t.shardFor(p.RequestID)
	shard.mu.Lock()
	shard.byReq[p.RequestID] = p
	shard.mu.Unlock()
}

func (t *pendingTable) get(requestID string) (*PendingRequest, bool) {
	shard := t.shardFor(requestID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	p, ok := shard.byReq[requestID]
	return p, ok
}

func (t *pendingTable) delete(requestID string) {
	shard := t.shardFor(requestID)
	shard.mu.Lock()
	delete(shard.byReq, requestID)
	shard.mu.Unlock()
}

// complete closes requestID with response, marking it COMPLETED if it was
// still PENDING, or LATE_RECEIVED if it had already TIMED_OUT. Returns
// false if no such pending request exists or it was already terminal.
func (t *pendingTable) complete(requestID string, response *protocol.Message) (wasLate bool, ok bool) {
	shard := t.shardFor(requestID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	p, exists := shard.byReq[requestID]
	if !exists {
		return false, false
	}

	switch p.status {
	case StatusPending:
		p.status = StatusCompleted
		p.response = response
		close(p.done)
		return false, true
	case StatusTimedOut:
		p.status = StatusLateReceived
		p.response = response
		return true, true
	default:
		return false, false
	}
}

// snapshot returns requestID's current status and response under the
// shard lock, for CheckLateResult to read without racing the worker that
// may be mutating it via complete/timeout.
func (t *pendingTable) snapshot(requestID string) (RequestStatus, *protocol.Message, bool) {
	shard := t.shardFor(requestID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	p, ok := shard.byReq[requestID]
	if !ok {
		return 0, nil, false
	}
	return p.status, p.response, true
}

// timeout flips requestID to TIMED_OUT if it is still PENDING.
func (t *pendingTable) timeout(requestID string) {
	shard := t.shardFor(requestID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if p, ok := shard.byReq[requestID]; ok && p.status == StatusPending {
		p.status = StatusTimedOut
		close(p.done)
	}
}

// evictOlderThan removes every terminal (non-PENDING) entry whose deadline
// predates cutoff, returning how many were evicted. Called by the janitor.
func (t *pendingTable) evictOlderThan(cutoff time.Time) int {
	evicted := 0
	for _, shard := range t.shards {
		shard.mu.Lock()
		for id, p := range shard.byReq {
			if p.status != StatusPending && p.Deadline.Before(cutoff) {
				delete(shard.byReq, id)
				evicted++
			}
		}
		shard.mu.Unlock()
	}
	return evicted
}

// cancelAllForAgent marks every still-pending request targeting or
// requested by agentID as FAILED, waking any SendAndWait callers, for use
// during agent shutdown (§4.6's cancellation semantics).
func (t *pendingTable) cancelAllForAgent(agentID string) {
	for _, shard := range t.shards {
		shard.mu.Lock()
		for _, p := range shard.byReq {
			if p.status == StatusPending && (string(p.RequesterID) == agentID || string(p.TargetID) == agentID) {
				p.status = StatusFailed
				close(p.done)
			}
		}
		shard.mu.Unlock()
	}
}
