// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/componenthost/internal/admin"
)

// NewComponentsCmd creates the components subcommand tree.
func NewComponentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "components",
		Aliases: []string{"component"},
		Short:   "Inspect and manage components of a running host",
		Long: `Inspect and manage components of a running host over its control socket.
Enabling a component persists the flag and takes effect on the next start;
disabling takes effect immediately.`,
	}

	cmd.AddCommand(newComponentsListCmd())
	cmd.AddCommand(newComponentActionCmd("enable", "Mark a component enabled for the next start"))
	cmd.AddCommand(newComponentActionCmd("disable", "Disable a component now and on later starts"))
	cmd.AddCommand(newComponentActionCmd("reload", "Reload a component's configuration"))
	cmd.AddCommand(newComponentsSaveCmd())

	return cmd
}

func newComponentsListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list [pattern]",
		Short: "List components and their lifecycle state",
		Long: `List components and their lifecycle state. The optional pattern is a glob
matched against component ids.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			statuses, err := client.Components(cmd.Context(), pattern)
			if err != nil {
				return err
			}
			if jsonOutput {
				data, err := json.MarshalIndent(statuses, "", "  ")
				if err != nil {
					return oops.Wrapf(err, "marshal component list")
				}
				cmd.Println(string(data))
				return nil
			}
			return admin.FormatTable(cmd.OutOrStdout(), statuses)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func newComponentActionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			res, err := client.Action(cmd.Context(), args[0], action)
			if err != nil {
				return err
			}
			cmd.Println(res.Message)
			return nil
		},
	}
}

func newComponentsSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save [id]",
		Short: "Save one component, or every enabled component",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				if err := client.SaveAll(cmd.Context()); err != nil {
					return err
				}
				cmd.Println("saved all enabled components")
				return nil
			}
			res, err := client.Action(cmd.Context(), args[0], "save")
			if err != nil {
				return err
			}
			cmd.Println(res.Message)
			return nil
		},
	}
}
