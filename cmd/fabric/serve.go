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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentfabric/fabric/capability"
	"github.com/agentfabric/fabric/capability/pgindex"
	"github.com/agentfabric/fabric/config"
	sagecrypto "github.com/agentfabric/fabric/crypto"
	"github.com/agentfabric/fabric/health"
	"github.com/agentfabric/fabric/hub"
	"github.com/agentfabric/fabric/internal/logger"
	"github.com/agentfabric/fabric/ratelimit"
	"github.com/agentfabric/fabric/registry"
	"github.com/agentfabric/fabric/runtime"
	httpapi "github.com/agentfabric/fabric/transport/http"
	wsapi "github.com/agentfabric/fabric/transport/ws"
)

var (
	serveConfigDir string
	serveManifest  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a fabric server: hub, registry, and a manifest's agents",
	Long: `serve loads configuration, starts the communication hub (C5) and
registry (C4), registers every agent in --manifest (or a single built-in
echo agent if omitted), and exposes the read-only admin surface
(transport/http) and event stream (transport/ws) described in config's
admin section. It runs until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveConfigDir, "config-dir", "c", "config", "Configuration directory")
	serveCmd.Flags().StringVarP(&serveManifest, "manifest", "m", "", "Agent manifest YAML (default: one built-in echo agent)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: serveConfigDir})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := buildLogger(cfg.Logging)

	m, err := loadManifest(serveManifest)
	if err != nil {
		return err
	}

	keyStore, err := sagecrypto.NewFileKeyStorage(cfg.KeyStore.Directory)
	if err != nil {
		return fmt.Errorf("open key storage: %w", err)
	}

	var backend capability.EmbeddingIndex
	if cfg.Registry.Postgres != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		idx, err := pgindex.New(ctx, &pgindex.Config{
			Host:     cfg.Registry.Postgres.Host,
			Port:     cfg.Registry.Postgres.Port,
			User:     cfg.Registry.Postgres.User,
			Password: cfg.Registry.Postgres.Password,
			Database: cfg.Registry.Postgres.Database,
			SSLMode:  cfg.Registry.Postgres.SSLMode,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("connect capability index: %w", err)
		}
		defer idx.Close()
		backend = idx
		log.Info("serve: capability index backed by postgres")
	} else {
		log.Info("serve: capability index running in degraded (in-memory) mode")
	}

	reg := registry.New(backend)
	reg.SetLivenessWindow(cfg.Registry.LivenessWindow)
	defer reg.Stop()

	broadcaster := wsapi.NewBroadcaster(log)

	h, err := hub.New(reg,
		hub.WithInboxCapacity(cfg.Hub.InboxCapacity),
		hub.WithRetentionWindow(cfg.Hub.RetentionWindow),
		hub.WithObservabilitySink(broadcaster),
	)
	if err != nil {
		return fmt.Errorf("start hub: %w", err)
	}
	defer h.Stop()

	runtimes, err := startAgents(m, keyStore, h, cfg, log, broadcaster.OnCooldown)
	if err != nil {
		return err
	}
	defer stopAgents(runtimes)

	checker := health.NewHealthChecker(5 * time.Second)
	checker.SetLogger(log)
	checker.RegisterCheck("keystore", health.KeyStoreHealthCheck(func() error {
		_, err := keyStore.List()
		return err
	}))

	jwtSecret := []byte(os.Getenv(cfg.Admin.JWTSecretEnv))
	if len(jwtSecret) == 0 {
		log.Warn("serve: admin JWT secret env var unset, minting an ephemeral one", logger.String("var", cfg.Admin.JWTSecretEnv))
		jwtSecret = []byte(fmt.Sprintf("ephemeral-%d", time.Now().UnixNano()))
	}

	httpSrv := httpapi.NewServer(cfg.Admin.Addr, h, checker, jwtSecret, log)
	go func() {
		if err := httpSrv.Start(); err != nil {
			log.Error("serve: admin http server stopped", logger.Error(err))
		}
	}()

	wsMux := http.NewServeMux()
	wsMux.Handle("/events", broadcaster.Handler())
	wsSrv := &http.Server{Addr: cfg.Admin.WSAddr, Handler: wsMux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("serve: event stream server stopped", logger.Error(err))
		}
	}()

	log.Info("serve: fabric running",
		logger.String("adminAddr", cfg.Admin.Addr),
		logger.String("wsAddr", cfg.Admin.WSAddr),
		logger.Int("agents", len(runtimes)),
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("serve: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	_ = wsSrv.Shutdown(ctx)
	return nil
}

// runningAgent holds a started Runtime so shutdown can stop it cleanly.
type runningAgent struct {
	rt *runtime.Runtime
}

func startAgents(m *manifest, store sagecrypto.KeyStorage, h *hub.Hub, cfg *config.Config, log logger.Logger, onCooldown ratelimit.CooldownListener) ([]runningAgent, error) {
	var out []runningAgent
	for _, spec := range m.Agents {
		id, err := resolveIdentity(store, spec)
		if err != nil {
			return nil, err
		}

		metadata := spec.metadata(id)
		if _, err := h.RegisterAgent(context.Background(), registry.AgentRef{Metadata: metadata, Identity: id}); err != nil {
			return nil, fmt.Errorf("register agent %q: %w", spec.Label, err)
		}

		control := ratelimit.NewController(ratelimit.Config{
			PerMinuteTokens: cfg.RateLimit.PerMinuteTokens,
			PerHourTokens:   cfg.RateLimit.PerHourTokens,
			MaxTurns:        cfg.RateLimit.MaxTurns,
			CooldownBackoff: cfg.RateLimit.CooldownBackoff,
		})
		control.OnCooldown(onCooldown)

		rt := runtime.New(id, metadata, h, newEchoEngine(id), control)
		go rt.Run()

		log.Info("serve: agent registered", logger.String("label", spec.Label), logger.String("agentId", string(id.ID())))
		out = append(out, runningAgent{rt: rt})
	}
	return out, nil
}

func stopAgents(agents []runningAgent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, a := range agents {
		a.rt.Stop(ctx)
	}
}

func buildLogger(cfg *config.LoggingConfig) logger.Logger {
	l := logger.NewLogger(os.Stdout, levelFromString(cfg.Level))
	return l
}

func levelFromString(s string) logger.Level {
	switch s {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
