// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/holomush/componenthost/internal/autosave"
	"github.com/holomush/componenthost/internal/config"
	"github.com/holomush/componenthost/internal/host"
	"github.com/holomush/componenthost/internal/logging"
)

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the component host",
		Long: `Start the component host. Components are registered, resolved and
enabled in dependency order; the host runs until it receives SIGINT or
SIGTERM or a shutdown request on the control socket.`,
		Args: cobra.NoArgs,
		RunE: runHost,
	}

	f := cmd.Flags()
	f.String("data-dir", "", "data directory (default XDG data dir)")
	f.String("log-format", "json", "log format (json or text)")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.Bool("control", true, "serve the control socket")
	f.String("control-socket", "", "control socket path")
	f.String("metrics-addr", "", "observability server address, empty disables it")
	f.Duration("autosave-interval", autosave.DefaultInterval, "autosave interval, 0 disables autosave")
	f.String("state-backend", config.BackendFile, "enabled-state backend (file or postgres)")
	f.String("database-url", "", "PostgreSQL URL for the postgres backend")
	f.StringSlice("components", nil, "component ids to register (default all)")
	f.Bool("reset", false, "reset every enabled component on this start")

	return cmd
}

func runHost(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Control.Socket == "" && socketFlag != "" {
		cfg.Control.Socket = socketFlag
	}

	logger, err := logging.SetDefault("componenthost", version, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}

	h, err := host.New(cfg, host.WithLogger(logger), host.WithVersion(version))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := h.Run(ctx); err != nil {
		logger.Error("host exited with error", "error", err)
		return err
	}
	return nil
}
