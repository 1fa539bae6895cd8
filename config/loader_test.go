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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FallsBackToEmptyConfigWithDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "test"})
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, 128, cfg.Hub.InboxCapacity)
}

func TestLoad_PrefersEnvironmentSpecificFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveToFile(&Config{Hub: &HubConfig{InboxCapacity: 7}}, filepath.Join(dir, "default.yaml")))
	require.NoError(t, SaveToFile(&Config{Hub: &HubConfig{InboxCapacity: 99}}, filepath.Join(dir, "staging.yaml")))

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "staging"})
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.Hub.InboxCapacity)
}

func TestLoad_EnvironmentOverrideHasHighestPriority(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveToFile(&Config{Hub: &HubConfig{InboxCapacity: 7}}, filepath.Join(dir, "default.yaml")))

	t.Setenv("FABRIC_HUB_INBOX_CAPACITY", "256")
	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "unused"})
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Hub.InboxCapacity)
}

func TestLoad_RejectsInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveToFile(&Config{RateLimit: &RateLimitConfig{PerMinuteTokens: -1}}, filepath.Join(dir, "default.yaml")))

	_, err := Load(LoaderOptions{ConfigDir: dir, Environment: "unused"})
	assert.Error(t, err)
}

func TestMustLoad_PanicsOnInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveToFile(&Config{RateLimit: &RateLimitConfig{PerMinuteTokens: -1}}, filepath.Join(dir, "default.yaml")))

	assert.Panics(t, func() {
		MustLoad(LoaderOptions{ConfigDir: dir, Environment: "unused"})
	})
}

func TestLoadConfigFile_MissingReturnsError(t *testing.T) {
	_, err := loadConfigFile(filepath.Join(os.TempDir(), "definitely-missing-fabric-config.yaml"))
	assert.Error(t, err)
}
