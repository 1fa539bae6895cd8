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

// Package wsapi exposes the hub's ObservabilitySink callbacks to external
// dashboards over a read-only WebSocket stream (§[EXPANSION] SUPPLEMENTED
// FEATURES). It is not an inter-hub transport: the fabric stays
// single-process, this only lets outside watchers observe it.
package wsapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentfabric/fabric/internal/logger"
	"github.com/agentfabric/fabric/protocol"
)

// Event is the wire shape of one broadcast notification.
type Event struct {
	Type      string    `json:"type"`
	Time      time.Time `json:"time"`
	RequestID string    `json:"requestId,omitempty"`
	AgentID   string    `json:"agentId,omitempty"`
	Until     time.Time `json:"until,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Broadcaster fans hub events out to every currently connected WebSocket
// client. It implements hub.ObservabilitySink without importing hub, the
// same interface-shape trick runtime.Hub uses to avoid an import cycle.
type Broadcaster struct {
	upgrader websocket.Upgrader
	log      logger.Logger

	mu    sync.RWMutex
	conns map[*websocket.Conn]chan Event
}

// NewBroadcaster builds a Broadcaster with no connected clients.
func NewBroadcaster(log logger.Logger) *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:   log,
		conns: make(map[*websocket.Conn]chan Event),
	}
}

// Handler upgrades the connection and streams events to it until the client
// disconnects. The stream is receive-only: any client frame is read and
// discarded, purely to notice a closed connection.
func (b *Broadcaster) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.log.Warn("wsapi: upgrade failed", logger.Error(err))
			return
		}

		ch := make(chan Event, 64)
		b.mu.Lock()
		b.conns[conn] = ch
		b.mu.Unlock()

		go b.writeLoop(conn, ch)
		b.readLoop(conn)
	})
}

func (b *Broadcaster) writeLoop(conn *websocket.Conn, ch chan Event) {
	for event := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			b.removeConn(conn)
			return
		}
	}
}

func (b *Broadcaster) readLoop(conn *websocket.Conn) {
	defer b.removeConn(conn)
	defer func() { _ = conn.Close() }()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) removeConn(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.conns[conn]; ok {
		close(ch)
		delete(b.conns, conn)
	}
}

func (b *Broadcaster) broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.conns {
		select {
		case ch <- event:
		default:
			b.log.Warn("wsapi: dropping event for slow client", logger.String("type", event.Type))
		}
	}
}

// OnRouted implements hub.ObservabilitySink.
func (b *Broadcaster) OnRouted(msg *protocol.Message) {
	b.broadcast(Event{
		Type:      "routed",
		Time:      time.Now(),
		RequestID: msg.Metadata.RequestID,
		AgentID:   msg.ReceiverID,
		Detail:    string(msg.MessageType),
	})
}

// OnInterceptorError implements hub.ObservabilitySink.
func (b *Broadcaster) OnInterceptorError(err error) {
	b.broadcast(Event{Type: "interceptor_error", Time: time.Now(), Detail: err.Error()})
}

// OnCooldown implements hub.ObservabilitySink.
func (b *Broadcaster) OnCooldown(agentID string, until time.Time) {
	b.broadcast(Event{Type: "cooldown", Time: time.Now(), AgentID: agentID, Until: until})
}

// OnLateResponse implements hub.ObservabilitySink.
func (b *Broadcaster) OnLateResponse(requestID string) {
	b.broadcast(Event{Type: "late_response", Time: time.Now(), RequestID: requestID})
}
