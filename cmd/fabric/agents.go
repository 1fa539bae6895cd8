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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	sagecrypto "github.com/agentfabric/fabric/crypto"
	"github.com/agentfabric/fabric/identity"
	"github.com/agentfabric/fabric/registry"
)

// agentSpec is one locally-hosted agent in a manifest file: enough to
// create-or-load its identity and register it with the hub at startup.
type agentSpec struct {
	Label          string            `yaml:"label"`
	KeyType        string            `yaml:"keyType"`
	OrganizationID string            `yaml:"organizationId"`
	Capabilities   []capabilitySpec  `yaml:"capabilities"`
}

type capabilitySpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// manifest is a `fabric serve`/`fabric demo` agent roster.
type manifest struct {
	Agents []agentSpec `yaml:"agents"`
}

// defaultManifest is used when no --manifest flag is given: a single
// echo-backed agent, just enough to prove the fabric is alive.
func defaultManifest() *manifest {
	return &manifest{
		Agents: []agentSpec{
			{
				Label:   "echo",
				KeyType: "ed25519",
				Capabilities: []capabilitySpec{
					{Name: "echo", Description: "echoes back any text message it receives"},
				},
			},
		},
	}
}

func loadManifest(path string) (*manifest, error) {
	if path == "" {
		return defaultManifest(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Agents) == 0 {
		return nil, fmt.Errorf("manifest %s declares no agents", path)
	}
	return &m, nil
}

// resolveIdentity loads spec's identity from store if already present,
// generating and persisting a fresh one on first run — so a manifest's
// agents keep the same AgentID across restarts.
func resolveIdentity(store sagecrypto.KeyStorage, spec agentSpec) (*identity.Identity, error) {
	if store.Exists(spec.Label) {
		kp, err := store.Load(spec.Label)
		if err != nil {
			return nil, fmt.Errorf("load identity %q: %w", spec.Label, err)
		}
		return identity.New(kp)
	}

	keyType, err := parseKeyType(spec.KeyType)
	if err != nil {
		return nil, err
	}
	id, err := identity.CreateWithKeyType(keyType)
	if err != nil {
		return nil, fmt.Errorf("create identity %q: %w", spec.Label, err)
	}
	if err := store.Store(spec.Label, id.KeyPair()); err != nil {
		return nil, fmt.Errorf("persist identity %q: %w", spec.Label, err)
	}
	return id, nil
}

func parseKeyType(s string) (sagecrypto.KeyType, error) {
	switch s {
	case "", "ed25519":
		return sagecrypto.KeyTypeEd25519, nil
	case "rsa":
		return sagecrypto.KeyTypeRSA, nil
	default:
		return "", fmt.Errorf("unsupported key type in manifest: %s", s)
	}
}

func (s agentSpec) metadata(id *identity.Identity) registry.AgentMetadata {
	caps := make([]registry.Capability, 0, len(s.Capabilities))
	for _, c := range s.Capabilities {
		caps = append(caps, registry.Capability{Name: c.Name, Description: c.Description})
	}
	return registry.AgentMetadata{
		AgentID:          id.ID(),
		AgentType:        registry.AgentTypeAI,
		InteractionModes: []registry.InteractionMode{registry.InteractionAgentToAgent, registry.InteractionHumanToAgent},
		Capabilities:     caps,
		OrganizationID:   s.OrganizationID,
	}
}
