// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package host

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/componenthost/internal/autosave"
	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/internal/config"
	"github.com/holomush/componenthost/internal/control"
	"github.com/holomush/componenthost/internal/integration"
	"github.com/holomush/componenthost/internal/observability"
	"github.com/holomush/componenthost/internal/state"
	"github.com/holomush/componenthost/internal/store"
)

// connectTimeout bounds the Postgres connection retries at startup.
const connectTimeout = 30 * time.Second

// Backend persists enabled flags and the reset flag.
type Backend interface {
	component.EnabledStore
	component.ResetFlag
}

// Deps contains injectable dependencies. Nil fields use the defaults.
type Deps struct {
	// BackendFactory opens the state backend and returns a close function.
	// Default: openBackend (file or postgres, per configuration).
	BackendFactory func(ctx context.Context, cfg *config.Config, dataDir string, logger *slog.Logger) (Backend, func(), error)

	// ObservabilityFactory creates the metrics and health server.
	// Default: observability.NewServer with every package's metrics.
	ObservabilityFactory func(addr string, ready observability.ReadinessChecker) *observability.Server

	// Migrate applies pending schema migrations before a postgres backend
	// is used. Default: store.NewMigrator + Up.
	Migrate func(databaseURL string) error
}

func (d Deps) withDefaults() Deps {
	if d.Migrate == nil {
		d.Migrate = migrateUp
	}
	if d.BackendFactory == nil {
		migrate := d.Migrate
		d.BackendFactory = func(ctx context.Context, cfg *config.Config, dataDir string, logger *slog.Logger) (Backend, func(), error) {
			return openBackend(ctx, cfg, dataDir, logger, migrate)
		}
	}
	if d.ObservabilityFactory == nil {
		d.ObservabilityFactory = func(addr string, ready observability.ReadinessChecker) *observability.Server {
			return observability.NewServer(addr, ready,
				component.RegisterMetrics,
				integration.RegisterMetrics,
				autosave.RegisterMetrics,
				control.RegisterMetrics,
			)
		}
	}
	return d
}

// fileBackend combines the YAML enabled-state file and runtime flag file.
type fileBackend struct {
	*state.FileStore
	*state.FileFlags
}

func openBackend(ctx context.Context, cfg *config.Config, dataDir string, logger *slog.Logger, migrate func(string) error) (Backend, func(), error) {
	switch cfg.State.Backend {
	case config.BackendPostgres:
		url := cfg.DatabaseURL()
		if err := migrate(url); err != nil {
			return nil, nil, err
		}
		pg, err := store.Connect(ctx, url, connectTimeout, logger)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case config.BackendFile, "":
		opts := []state.Option{state.WithLogger(logger)}
		b := fileBackend{
			FileStore: state.NewFileStore(resolvePath(dataDir, cfg.State.ComponentsFile), opts...),
			FileFlags: state.NewFileFlags(resolvePath(dataDir, cfg.State.RuntimeFile), opts...),
		}
		return b, func() {}, nil
	default:
		return nil, nil, oops.Code(config.CodeConfigInvalid).
			With("backend", cfg.State.Backend).
			Errorf("unknown state backend %q", cfg.State.Backend)
	}
}

// resolvePath anchors relative state file paths in the data directory.
func resolvePath(dataDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dataDir, path)
}

func migrateUp(databaseURL string) error {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}
