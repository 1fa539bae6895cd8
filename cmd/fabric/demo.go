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

	"github.com/spf13/cobra"
	"github.com/google/uuid"

	"github.com/agentfabric/fabric/hub"
	"github.com/agentfabric/fabric/identity"
	"github.com/agentfabric/fabric/protocol"
	"github.com/agentfabric/fabric/registry"
	"github.com/agentfabric/fabric/runtime"
)

// demoCmd is the fabric's own smoke test: the interconnect is a
// single-process fabric (inter-process federation is explicitly out of
// scope), so there is no network RPC surface to drive registration,
// discovery, and request/response from the outside. demo instead spins up
// an ephemeral in-process hub/registry and two echo agents, then walks
// through every verb a client would exercise — the same coverage a remote
// CLI would give, against the fabric it actually has.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run an in-process registration/discovery/messaging walkthrough",
	Long: `demo builds an ephemeral hub and registry, registers two echo
agents, discovers one from the other via capability search, sends a
fire-and-forget message, and issues a request/response exchange —
demonstrating every C4/C5/C7 verb without requiring a running server.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	reg := registry.New(nil)
	defer reg.Stop()

	h, err := hub.New(reg)
	if err != nil {
		return fmt.Errorf("start hub: %w", err)
	}
	defer h.Stop()

	alice, aliceRT, err := spawnDemoAgent(ctx, h, "alice", "greeter", "exchanges friendly greetings")
	if err != nil {
		return err
	}
	defer aliceRT.Stop(context.Background())

	bob, bobRT, err := spawnDemoAgent(ctx, h, "bob", "echo", "echoes back any text message it receives")
	if err != nil {
		return err
	}
	defer bobRT.Stop(context.Background())

	fmt.Printf("registered alice=%s bob=%s\n", alice.ID(), bob.ID())

	results, err := h.Find(ctx, alice.ID(), "echo", 5, 0.1)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	fmt.Printf("alice discovered %d agent(s) offering \"echo\"\n", len(results))
	for _, r := range results {
		fmt.Printf("  - %s (score %.2f)\n", r.AgentID, r.Score)
	}

	fireAndForget := protocol.New(string(alice.ID()), string(bob.ID()), "hello bob", protocol.MessageTypeText, time.Now())
	if err := protocol.NewSigner(alice).SignInPlace(fireAndForget); err != nil {
		return fmt.Errorf("sign message: %w", err)
	}
	if err := h.Route(fireAndForget); err != nil {
		return fmt.Errorf("route message: %w", err)
	}
	fmt.Println("alice sent a fire-and-forget TEXT message to bob")

	request := protocol.New(string(alice.ID()), string(bob.ID()), "ping from alice", protocol.MessageTypeText, time.Now())
	request = request.WithRequestID(uuid.NewString())
	if err := protocol.NewSigner(alice).SignInPlace(request); err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	response, status, requestID, err := h.SendAndWait(ctx, request, 5*time.Second)
	if err != nil {
		return fmt.Errorf("request/response: %w", err)
	}
	fmt.Printf("request %s finished with status %s\n", requestID, status)
	if response != nil {
		fmt.Printf("bob replied: %q\n", response.Content)
	}

	time.Sleep(100 * time.Millisecond) // let the fire-and-forget message's reply land before shutdown
	return nil
}

func spawnDemoAgent(ctx context.Context, h *hub.Hub, label, capName, capDesc string) (*identity.Identity, *runtime.Runtime, error) {
	id, err := identity.CreateKeyBased()
	if err != nil {
		return nil, nil, fmt.Errorf("create identity %q: %w", label, err)
	}

	metadata := registry.AgentMetadata{
		AgentID:          id.ID(),
		AgentType:        registry.AgentTypeAI,
		InteractionModes: []registry.InteractionMode{registry.InteractionAgentToAgent},
		Capabilities:     []registry.Capability{{Name: capName, Description: capDesc}},
	}
	if _, err := h.RegisterAgent(ctx, registry.AgentRef{Metadata: metadata, Identity: id}); err != nil {
		return nil, nil, fmt.Errorf("register %q: %w", label, err)
	}

	rt := runtime.New(id, metadata, h, newEchoEngine(id), nil)
	go rt.Run()
	return id, rt, nil
}
