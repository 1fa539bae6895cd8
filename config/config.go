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

// Package config loads the fabric's layered configuration: an
// environment-specific YAML file, with a default.yaml/config.yaml
// fallback chain, environment-variable substitution, and finally direct
// environment-variable overrides, in increasing order of priority.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fabric's top-level configuration.
type Config struct {
	Environment string           `yaml:"environment" json:"environment"`
	KeyStore    *KeyStoreConfig  `yaml:"keystore" json:"keystore"`
	Hub         *HubConfig       `yaml:"hub" json:"hub"`
	Registry    *RegistryConfig  `yaml:"registry" json:"registry"`
	RateLimit   *RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Logging     *LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig   `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig    `yaml:"health" json:"health"`
	Admin       *AdminConfig     `yaml:"admin" json:"admin"`
}

// KeyStoreConfig controls where an agent's signing key material is kept.
type KeyStoreConfig struct {
	Type          string `yaml:"type" json:"type"` // file, memory
	Directory     string `yaml:"directory" json:"directory"`
	PassphraseEnv string `yaml:"passphrase_env" json:"passphrase_env"`
}

// HubConfig controls the communication hub's resource limits.
type HubConfig struct {
	InboxCapacity   int           `yaml:"inbox_capacity" json:"inbox_capacity"`
	RetentionWindow time.Duration `yaml:"retention_window" json:"retention_window"`
}

// RegistryConfig controls the registry's liveness window and the
// capability index's semantic search threshold.
type RegistryConfig struct {
	LivenessWindow   time.Duration   `yaml:"liveness_window" json:"liveness_window"`
	SemanticMinScore float64         `yaml:"semantic_min_score" json:"semantic_min_score"`
	Postgres         *PostgresConfig `yaml:"postgres,omitempty" json:"postgres,omitempty"`
}

// PostgresConfig configures the capability index's optional
// PostgreSQL-backed embedding store. A nil Postgres section runs the
// index in degraded (in-memory, no persistence) mode.
type PostgresConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode"`
}

// RateLimitConfig controls interaction control's default token-bucket and
// turn-cap limits, applied to every agent's runtime unless overridden.
type RateLimitConfig struct {
	PerMinuteTokens int           `yaml:"per_minute_tokens" json:"per_minute_tokens"`
	PerHourTokens   int           `yaml:"per_hour_tokens" json:"per_hour_tokens"`
	MaxTurns        int           `yaml:"max_turns" json:"max_turns"`
	CooldownBackoff time.Duration `yaml:"cooldown_backoff" json:"cooldown_backoff"`
}

// LoggingConfig controls internal/logger's output.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig controls the health-check HTTP endpoint.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// AdminConfig controls transport/http's read-only admin surface and
// transport/ws's event stream, both fronting the same running fabric.
// JWTSecretEnv names the environment variable holding the HMAC secret
// transport/http signs and validates bearer tokens with; the secret itself
// is never written to a config file.
type AdminConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Addr        string `yaml:"addr" json:"addr"`
	WSAddr      string `yaml:"ws_addr" json:"ws_addr"`
	JWTSecretEnv string `yaml:"jwt_secret_env" json:"jwt_secret_env"`
}

// LoadFromFile loads configuration from a YAML file, falling back to
// JSON, and applies defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile saves configuration to path, in YAML unless path ends in
// ".json".
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if len(path) >= 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// setDefaults fills in every unset section with the fabric's resolved
// defaults: a 5-minute registry liveness window, a 15-minute hub
// retention window, and a 0.35 semantic match threshold.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.KeyStore == nil {
		cfg.KeyStore = &KeyStoreConfig{}
	}
	if cfg.KeyStore.Type == "" {
		cfg.KeyStore.Type = "file"
	}
	if cfg.KeyStore.Directory == "" {
		cfg.KeyStore.Directory = ".fabric/keys"
	}

	if cfg.Hub == nil {
		cfg.Hub = &HubConfig{}
	}
	if cfg.Hub.InboxCapacity == 0 {
		cfg.Hub.InboxCapacity = 128
	}
	if cfg.Hub.RetentionWindow == 0 {
		cfg.Hub.RetentionWindow = 15 * time.Minute
	}

	if cfg.Registry == nil {
		cfg.Registry = &RegistryConfig{}
	}
	if cfg.Registry.LivenessWindow == 0 {
		cfg.Registry.LivenessWindow = 5 * time.Minute
	}
	if cfg.Registry.SemanticMinScore == 0 {
		cfg.Registry.SemanticMinScore = 0.35
	}

	if cfg.RateLimit == nil {
		cfg.RateLimit = &RateLimitConfig{}
	}
	if cfg.RateLimit.PerMinuteTokens == 0 {
		cfg.RateLimit.PerMinuteTokens = 60_000
	}
	if cfg.RateLimit.PerHourTokens == 0 {
		cfg.RateLimit.PerHourTokens = 1_000_000
	}
	if cfg.RateLimit.MaxTurns == 0 {
		cfg.RateLimit.MaxTurns = 50
	}
	if cfg.RateLimit.CooldownBackoff == 0 {
		cfg.RateLimit.CooldownBackoff = 30 * time.Second
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Health == nil {
		cfg.Health = &HealthConfig{}
	}
	if cfg.Health.Addr == "" {
		cfg.Health.Addr = ":8080"
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/healthz"
	}

	if cfg.Admin == nil {
		cfg.Admin = &AdminConfig{}
	}
	if cfg.Admin.Addr == "" {
		cfg.Admin.Addr = ":8090"
	}
	if cfg.Admin.WSAddr == "" {
		cfg.Admin.WSAddr = ":8091"
	}
	if cfg.Admin.JWTSecretEnv == "" {
		cfg.Admin.JWTSecretEnv = "SAGEFABRIC_ADMIN_JWT_SECRET"
	}
}
