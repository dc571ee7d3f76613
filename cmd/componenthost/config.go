// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/componenthost/internal/config"
	"github.com/holomush/componenthost/internal/xdg"
)

// NewConfigCmd creates the config subcommand tree.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate configuration or print its schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a config file",
		Long: `Validate a config file against the configuration schema and the host's
own checks. The file defaults to --config, then the XDG config file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runConfigValidate,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	})

	return cmd
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		p, err := xdg.ConfigFile()
		if err != nil {
			return err
		}
		path = p
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return oops.Code(config.CodeConfigInvalid).With("path", path).Wrapf(err, "read config file")
	}
	if err := config.ValidateSchema(data); err != nil {
		return oops.With("path", path).Wrap(err)
	}

	cfg, err := config.Load(path, true, nil)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return oops.With("path", path).Wrap(err)
	}

	cmd.Printf("%s is valid\n", path)
	return nil
}
