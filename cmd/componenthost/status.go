// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/componenthost/internal/control"
)

// HostStatus is what the status command reports about a host.
type HostStatus struct {
	Socket        string `json:"socket"`
	Running       bool   `json:"running"`
	Ready         bool   `json:"ready"`
	Health        string `json:"health,omitempty"`
	PID           int    `json:"pid,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	Error         string `json:"error,omitempty"`
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running host",
		Long:  `Show the health, readiness and uptime of a running host.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := queryStatus(cmd)
			if jsonOutput {
				data, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					return oops.Wrapf(err, "marshal status")
				}
				cmd.Println(string(data))
				return nil
			}
			cmd.Print(formatStatusTable(st))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")
	return cmd
}

// NewShutdownCmd creates the shutdown subcommand.
func NewShutdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Ask a running host to shut down",
		Long: `Ask a running host to shut down. Components are disabled in reverse
activation order before the process exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			if err := client.Shutdown(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("shutdown requested")
			return nil
		},
	}
}

// queryStatus never fails; an unreachable host is reported as not running.
func queryStatus(cmd *cobra.Command) HostStatus {
	var st HostStatus

	path, err := socketPath()
	if err != nil {
		st.Error = fmt.Sprintf("resolve socket: %v", err)
		return st
	}
	st.Socket = path
	client := control.NewClient(path, clientTimeout)

	health, err := client.Health(cmd.Context())
	if err != nil {
		st.Error = "not reachable"
		return st
	}
	st.Running = true
	st.Health = health.Status
	st.Ready = health.Ready

	// Health succeeded, so a status failure still means running.
	if s, err := client.Status(cmd.Context()); err == nil {
		st.PID = s.PID
		st.UptimeSeconds = s.UptimeSeconds
	}
	return st
}

func formatStatusTable(st HostStatus) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "SOCKET\tSTATUS\tHEALTH\tREADY\tPID\tUPTIME")
	if st.Running {
		_, _ = fmt.Fprintf(w, "%s\trunning\t%s\t%t\t%d\t%s\n",
			st.Socket, st.Health, st.Ready, st.PID, formatUptime(st.UptimeSeconds))
	} else {
		reason := "not running"
		if st.Error != "" {
			reason = st.Error
		}
		_, _ = fmt.Fprintf(w, "%s\tstopped\t-\t-\t-\t%s\n", st.Socket, reason)
	}

	_ = w.Flush()
	return buf.String()
}

// formatUptime formats seconds into a human-readable duration.
func formatUptime(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
