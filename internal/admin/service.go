// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package admin implements the operator surface over the component manager:
// listing, enabling, disabling, saving and reloading components.
package admin

import (
	"context"
	"log/slog"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/pkg/errutil"
)

// CodeInvalidPattern is returned when a list pattern does not compile.
const CodeInvalidPattern = "INVALID_PATTERN"

// Manager is the part of component.Manager the admin surface drives.
type Manager interface {
	Statuses() []component.Status
	LookupEnabled(id component.ID) (component.Component, bool)
	SetEnabled(ctx context.Context, id component.ID, enabled bool) (bool, error)
	SaveComponent(ctx context.Context, id component.ID) error
	SaveAll(ctx context.Context)
	ReloadComponent(ctx context.Context, id component.ID) error
}

// Result describes the outcome of an enable or disable request.
type Result struct {
	ID component.ID `json:"id"`
	// Enabled is the persisted flag after the request.
	Enabled bool `json:"enabled"`
	// Changed reports whether the running state changed now.
	Changed bool `json:"changed"`
	// RestartRequired is set when the request only takes effect on the next start.
	RestartRequired bool   `json:"restart_required"`
	Message         string `json:"message"`
}

// Service executes administrative requests.
type Service struct {
	manager Manager
	reset   component.ResetFlag
	logger  *slog.Logger
}

// NewService creates an admin service. reset may be nil, which disables
// RequestReset.
func NewService(m Manager, reset component.ResetFlag, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{manager: m, reset: reset, logger: logger}
}

// List returns the status of every component whose id matches pattern.
// Patterns use glob syntax with '.' as separator; an empty pattern matches all.
func (s *Service) List(pattern string) ([]component.Status, error) {
	statuses := s.manager.Statuses()
	if pattern == "" {
		return statuses, nil
	}

	g, err := glob.Compile(pattern, '.')
	if err != nil {
		return nil, oops.Code(CodeInvalidPattern).
			With("pattern", pattern).
			Wrapf(err, "invalid component pattern")
	}

	out := make([]component.Status, 0, len(statuses))
	for _, st := range statuses {
		if g.Match(string(st.ID)) {
			out = append(out, st)
		}
	}
	return out, nil
}

// Enable persists the enabled flag for id. A component that is not running
// starts on the next run; one that is already running needs no restart.
func (s *Service) Enable(ctx context.Context, id component.ID) (Result, error) {
	changed, err := s.manager.SetEnabled(ctx, id, true)
	if err != nil && !persisted(err) {
		return Result{}, err
	}
	res := Result{
		ID:              id,
		Enabled:         true,
		Changed:         changed,
		RestartRequired: true,
		Message:         "component " + string(id) + " will be enabled on the next start",
	}
	if _, running := s.manager.LookupEnabled(id); running {
		res.RestartRequired = false
		res.Message = "component " + string(id) + " is already running"
	}
	s.logger.Info("component enable requested",
		"component", string(id),
		"restart_required", res.RestartRequired)
	return res, err
}

// Disable persists the disabled flag for id and disables it now if it is running.
func (s *Service) Disable(ctx context.Context, id component.ID) (Result, error) {
	changed, err := s.manager.SetEnabled(ctx, id, false)
	if err != nil && !persisted(err) {
		return Result{}, err
	}
	res := Result{
		ID:      id,
		Enabled: false,
		Changed: changed,
		Message: "component " + string(id) + " disabled",
	}
	if !changed {
		res.Message = "component " + string(id) + " was not running; it stays disabled"
	}
	s.logger.Info("component disable requested", "component", string(id), "changed", changed)
	return res, err
}

// persisted reports whether err is a persistence failure, after which the
// request still took effect in memory.
func persisted(err error) bool {
	return errutil.HasCode(err, component.CodePersistenceWriteFailed)
}

// Save saves one enabled component.
func (s *Service) Save(ctx context.Context, id component.ID) error {
	return s.manager.SaveComponent(ctx, id)
}

// SaveAll saves every enabled component.
func (s *Service) SaveAll(ctx context.Context) {
	s.manager.SaveAll(ctx)
}

// Reload runs the reload hook of one enabled component.
func (s *Service) Reload(ctx context.Context, id component.ID) error {
	return s.manager.ReloadComponent(ctx, id)
}

// RequestReset sets the persisted reset flag so the next start resets every
// enabled component.
func (s *Service) RequestReset(ctx context.Context) error {
	if s.reset == nil {
		return oops.Code("RESET_UNAVAILABLE").Errorf("no reset flag configured")
	}
	if err := s.reset.RequestReset(ctx); err != nil {
		return err
	}
	s.logger.Warn("reset requested for next start")
	return nil
}
