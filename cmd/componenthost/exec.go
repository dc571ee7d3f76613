// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewExecCmd creates the exec subcommand.
func NewExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command> [args...]",
		Short: "Run a component command on a running host",
		Long: `Run a command provided by an enabled component, as an operator, and
print its output. For example: componenthost exec balance alice`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			out, err := client.Exec(cmd.Context(), strings.Join(args, " "))
			cmd.Print(out)
			return err
		},
	}
}
