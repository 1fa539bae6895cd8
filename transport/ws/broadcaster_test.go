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

package wsapi

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/agentfabric/fabric/internal/logger"
	"github.com/agentfabric/fabric/protocol"
)

func dialBroadcaster(t *testing.T, b *Broadcaster) (*websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(b.Handler())
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return conn, func() {
		_ = conn.Close()
		server.Close()
	}
}

func TestBroadcaster_OnRouted(t *testing.T) {
	b := NewBroadcaster(logger.NewDefaultLogger())
	conn, closeAll := dialBroadcaster(t, b)
	defer closeAll()

	msg := &protocol.Message{
		ReceiverID:  "agent-bob",
		MessageType: protocol.MessageTypeText,
		Metadata:    protocol.Metadata{RequestID: "req-1"},
	}
	b.OnRouted(msg)

	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, "routed", event.Type)
	require.Equal(t, "agent-bob", event.AgentID)
	require.Equal(t, "req-1", event.RequestID)
}

func TestBroadcaster_OnCooldown(t *testing.T) {
	b := NewBroadcaster(logger.NewDefaultLogger())
	conn, closeAll := dialBroadcaster(t, b)
	defer closeAll()

	until := time.Now().Add(time.Minute)
	b.OnCooldown("agent-carol", until)

	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, "cooldown", event.Type)
	require.Equal(t, "agent-carol", event.AgentID)
	require.WithinDuration(t, until, event.Until, time.Second)
}

func TestBroadcaster_OnLateResponse(t *testing.T) {
	b := NewBroadcaster(logger.NewDefaultLogger())
	conn, closeAll := dialBroadcaster(t, b)
	defer closeAll()

	b.OnLateResponse("req-42")

	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, "late_response", event.Type)
	require.Equal(t, "req-42", event.RequestID)
}

func TestBroadcaster_OnInterceptorError(t *testing.T) {
	b := NewBroadcaster(logger.NewDefaultLogger())
	conn, closeAll := dialBroadcaster(t, b)
	defer closeAll()

	b.OnInterceptorError(errBoom{})

	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, "interceptor_error", event.Type)
	require.Equal(t, "boom", event.Detail)
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestBroadcaster_RemovesConnOnClose(t *testing.T) {
	b := NewBroadcaster(logger.NewDefaultLogger())
	conn, closeAll := dialBroadcaster(t, b)

	_ = conn.Close()
	time.Sleep(50 * time.Millisecond)

	b.mu.RLock()
	count := len(b.conns)
	b.mu.RUnlock()
	require.Equal(t, 0, count)

	closeAll()
}
