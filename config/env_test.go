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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteEnvVars_UsesValueOrDefault(t *testing.T) {
	t.Setenv("FABRIC_TEST_VAR", "resolved")
	assert.Equal(t, "resolved", SubstituteEnvVars("${FABRIC_TEST_VAR}"))
	assert.Equal(t, "fallback", SubstituteEnvVars("${FABRIC_UNSET_VAR:fallback}"))
	assert.Equal(t, "", SubstituteEnvVars("${FABRIC_UNSET_VAR}"))
}

func TestSubstituteEnvVarsInConfig_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() { SubstituteEnvVarsInConfig(nil) })
}

func TestSubstituteEnvVarsInConfig_SubstitutesLoggingFields(t *testing.T) {
	t.Setenv("FABRIC_LOG_LEVEL_VAR", "debug")
	cfg := &Config{Logging: &LoggingConfig{Level: "${FABRIC_LOG_LEVEL_VAR}"}}
	SubstituteEnvVarsInConfig(cfg)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestGetEnvironment_DefaultsToDevelopment(t *testing.T) {
	t.Setenv("FABRIC_ENV", "")
	t.Setenv("ENVIRONMENT", "")
	assert.Equal(t, "development", GetEnvironment())
}

func TestGetEnvironment_PrefersFabricEnv(t *testing.T) {
	t.Setenv("FABRIC_ENV", "Production")
	t.Setenv("ENVIRONMENT", "staging")
	assert.Equal(t, "production", GetEnvironment())
}

func TestIsProductionAndIsDevelopment(t *testing.T) {
	t.Setenv("FABRIC_ENV", "production")
	assert.True(t, IsProduction())
	assert.False(t, IsDevelopment())

	t.Setenv("FABRIC_ENV", "local")
	assert.False(t, IsProduction())
	assert.True(t, IsDevelopment())
}
