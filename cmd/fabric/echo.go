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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/agentfabric/fabric/identity"
	"github.com/agentfabric/fabric/protocol"
)

// echoEngine is the fabric's built-in runtime.ReasoningEngine: it answers
// any message with a RESPONSE whose content is the original prefixed by
// "echo: ", just enough
// behavior to prove messages actually flow end to end. Real deployments
// supply their own engine (runtime.ReasoningEngine is the DI seam for
// that); this one exists so `fabric serve`/`fabric demo` have something to
// run without an LLM dependency.
type echoEngine struct {
	id         *identity.Identity
	lastTokens int
}

func newEchoEngine(id *identity.Identity) *echoEngine {
	return &echoEngine{id: id}
}

func (e *echoEngine) Handle(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	e.lastTokens = len(msg.Content)

	reply := protocol.New(string(e.id.ID()), msg.SenderID, fmt.Sprintf("echo: %s", msg.Content), protocol.MessageTypeResponse, time.Now())
	reply.Metadata.RequestID = msg.Metadata.RequestID
	if err := protocol.NewSigner(e.id).SignInPlace(reply); err != nil {
		return nil, fmt.Errorf("echoEngine: sign reply: %w", err)
	}
	return reply, nil
}

func (e *echoEngine) LastTokenUsage() int { return e.lastTokens }

func (e *echoEngine) Shutdown(ctx context.Context) error { return nil }
