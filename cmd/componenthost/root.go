// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holomush/componenthost/internal/config"
	"github.com/holomush/componenthost/internal/control"
	"github.com/holomush/componenthost/internal/xdg"
)

// clientTimeout bounds every control socket request made by the CLI.
const clientTimeout = 30 * time.Second

// Global flags available to all subcommands.
var (
	configFile string
	socketFlag string
)

// NewRootCmd creates the root command for the componenthost CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "componenthost",
		Short: "componenthost - a component lifecycle host",
		Long: `componenthost runs a set of components with declared dependencies,
enabling them in dependency order and disabling them in reverse. A running
host is managed through its control socket.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "control socket path")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewComponentsCmd())
	cmd.AddCommand(NewExecCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewShutdownCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig loads the file named by --config, which must exist, or the
// default XDG config file if present.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	path, required := configFile, configFile != ""
	if path == "" {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	return config.Load(path, required, flags)
}

// socketPath picks the control socket from --socket, then the config file,
// then the default runtime location.
func socketPath() (string, error) {
	if socketFlag != "" {
		return socketFlag, nil
	}
	cfg, err := loadConfig(nil)
	if err != nil {
		return "", err
	}
	if cfg.Control.Socket != "" {
		return cfg.Control.Socket, nil
	}
	return control.SocketPath("host")
}

func newClient() (*control.Client, error) {
	path, err := socketPath()
	if err != nil {
		return nil, err
	}
	return control.NewClient(path, clientTimeout), nil
}
