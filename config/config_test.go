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

package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, SaveToFile(&Config{Environment: "staging"}, path))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 128, cfg.Hub.InboxCapacity)
	assert.Equal(t, 15*time.Minute, cfg.Hub.RetentionWindow)
	assert.Equal(t, 5*time.Minute, cfg.Registry.LivenessWindow)
	assert.Equal(t, 0.35, cfg.Registry.SemanticMinScore)
	assert.Equal(t, 60_000, cfg.RateLimit.PerMinuteTokens)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveToFile_JSONExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	cfg := &Config{}
	setDefaults(cfg)

	require.NoError(t, SaveToFile(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Hub.InboxCapacity, loaded.Hub.InboxCapacity)
}

func TestSetDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Hub: &HubConfig{InboxCapacity: 512},
	}
	setDefaults(cfg)
	assert.Equal(t, 512, cfg.Hub.InboxCapacity)
	assert.Equal(t, 15*time.Minute, cfg.Hub.RetentionWindow)
}

func TestSetDefaults_Admin(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	require.NotNil(t, cfg.Admin)
	assert.Equal(t, ":8090", cfg.Admin.Addr)
	assert.Equal(t, ":8091", cfg.Admin.WSAddr)
	assert.Equal(t, "SAGEFABRIC_ADMIN_JWT_SECRET", cfg.Admin.JWTSecretEnv)
}
