// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package admin

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"

	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/internal/integration"
)

const componentsUsage = "components [list [pattern] | enable <id> | disable <id> | save [id] | reload <id> | reset]"

// Command returns the operator-only "components" command.
func (s *Service) Command() *integration.Command {
	return &integration.Command{
		Name:     "components",
		Help:     "Inspect and manage components",
		Usage:    componentsUsage,
		Operator: true,
		Handler:  s.handle,
	}
}

func (s *Service) handle(ctx context.Context, exec *integration.Execution) error {
	fields := exec.Fields()
	if len(fields) == 0 {
		fields = []string{"list"}
	}
	sub, args := strings.ToLower(fields[0]), fields[1:]

	switch sub {
	case "list":
		pattern := ""
		if len(args) > 0 {
			pattern = args[0]
		}
		return s.handleList(exec, pattern)
	case "enable", "disable":
		if len(args) != 1 {
			return usageError(sub)
		}
		var res Result
		var err error
		if sub == "enable" {
			res, err = s.Enable(ctx, component.ID(args[0]))
		} else {
			res, err = s.Disable(ctx, component.ID(args[0]))
		}
		if res.ID != "" {
			exec.Reply("%s", res.Message)
		}
		return err
	case "save":
		if len(args) == 0 {
			s.SaveAll(ctx)
			exec.Reply("saved all components")
			return nil
		}
		if err := s.Save(ctx, component.ID(args[0])); err != nil {
			return err
		}
		exec.Reply("saved %s", args[0])
		return nil
	case "reload":
		if len(args) != 1 {
			return usageError(sub)
		}
		if err := s.Reload(ctx, component.ID(args[0])); err != nil {
			return err
		}
		exec.Reply("reloaded %s", args[0])
		return nil
	case "reset":
		if err := s.RequestReset(ctx); err != nil {
			return err
		}
		exec.Reply("every enabled component will be reset on the next start")
		return nil
	default:
		return usageError(sub)
	}
}

func (s *Service) handleList(exec *integration.Execution, pattern string) error {
	statuses, err := s.List(pattern)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		exec.Reply("no components match")
		return nil
	}
	if exec.Output == nil {
		return nil
	}
	return FormatTable(exec.Output, statuses)
}

// FormatTable writes statuses as an aligned table.
func FormatTable(w io.Writer, statuses []component.Status) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tCONFIGURED\tDEPENDS ON\tREASON")
	for _, st := range statuses {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n",
			st.ID, st.State, st.Configured, joinDeps(st), st.Reason)
	}
	if err := tw.Flush(); err != nil {
		return oops.With("operation", "write component table").Wrap(err)
	}
	return nil
}

func joinDeps(st component.Status) string {
	parts := make([]string, 0, len(st.Hard)+len(st.Soft))
	for _, id := range st.Hard {
		parts = append(parts, string(id))
	}
	for _, id := range st.Soft {
		parts = append(parts, string(id)+"?")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

func usageError(sub string) error {
	return oops.Code("INVALID_USAGE").
		With("subcommand", sub).
		Errorf("usage: %s", componentsUsage)
}
