// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package host wires the component runtime into a long-lived process: state
// backend, component manager, command hub, autosave, control socket and
// observability server.
package host

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/componenthost/internal/admin"
	"github.com/holomush/componenthost/internal/autosave"
	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/internal/components/economy"
	"github.com/holomush/componenthost/internal/components/userdata"
	"github.com/holomush/componenthost/internal/config"
	"github.com/holomush/componenthost/internal/control"
	"github.com/holomush/componenthost/internal/integration"
	"github.com/holomush/componenthost/internal/observability"
	"github.com/holomush/componenthost/internal/xdg"
	"github.com/holomush/componenthost/pkg/errutil"
)

// Owner is the integration owner used for host-level commands.
const Owner component.ID = "host"

// DefaultShutdownTimeout bounds Stop when Run tears the host down.
const DefaultShutdownTimeout = 30 * time.Second

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithVersion sets the version reported in metrics.
func WithVersion(v string) Option {
	return func(h *Host) { h.version = v }
}

// WithComponents registers additional components after the built-in ones.
func WithComponents(cs ...component.Component) Option {
	return func(h *Host) { h.extra = append(h.extra, cs...) }
}

// WithoutBuiltins skips the built-in sample components.
func WithoutBuiltins() Option {
	return func(h *Host) { h.builtins = false }
}

// WithDeps overrides the host's factories.
func WithDeps(d Deps) Option {
	return func(h *Host) { h.deps = d }
}

// Host runs the component runtime.
type Host struct {
	cfg      *config.Config
	logger   *slog.Logger
	version  string
	deps     Deps
	builtins bool
	extra    []component.Component

	dataDir   string
	backend   Backend
	closeBack func()
	hub       *integration.Hub
	manager   *component.Manager
	admin     *admin.Service
	autosave  *autosave.Scheduler
	control   *control.Server
	obs       *observability.Server
	obsErrCh  <-chan error

	mu       sync.Mutex
	started  bool
	stopped  bool
	shutdown chan struct{}
	once     sync.Once
}

// New creates a host for cfg. Nothing starts until Start.
func New(cfg *config.Config, opts ...Option) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Host{
		cfg:      cfg,
		logger:   slog.Default(),
		version:  "dev",
		builtins: true,
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.deps = h.deps.withDefaults()
	return h, nil
}

// Start runs the start hook: open the state backend, register components,
// resolve and activate them, consult the reset flag, then start autosave and
// the administrative surfaces.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return component.ErrAlreadyStarted()
	}
	h.started = true

	dataDir, err := h.resolveDataDir()
	if err != nil {
		return err
	}
	h.dataDir = dataDir

	backend, closeBackend, err := h.deps.BackendFactory(ctx, h.cfg, dataDir, h.logger)
	if err != nil {
		return oops.With("backend", h.cfg.State.Backend).Wrapf(err, "open state backend")
	}
	h.backend, h.closeBack = backend, closeBackend

	if h.cfg.Reset {
		if err := backend.RequestReset(ctx); err != nil {
			h.cleanup()
			return err
		}
	}

	h.hub = integration.NewHub(h.logger)
	h.manager = component.NewManager(
		component.WithEnabledStore(backend),
		component.WithResetFlag(backend),
		component.WithIntegrator(h.hub),
		component.WithLogger(h.logger),
		component.WithSaveLogThreshold(h.cfg.Save.LogThreshold),
		component.WithDataDir(filepath.Join(dataDir, "components")),
	)

	if err := h.register(); err != nil {
		h.cleanup()
		return err
	}

	h.admin = admin.NewService(h.manager, backend, h.logger)
	if err := h.hub.RegisterIntegration(Owner, h.admin.Command()); err != nil {
		h.cleanup()
		return err
	}

	if err := h.manager.Start(ctx); err != nil {
		h.cleanup()
		return err
	}

	if err := h.startSurfaces(ctx); err != nil {
		h.teardown(ctx)
		return err
	}

	h.logger.Info("host started",
		"data_dir", dataDir,
		"backend", h.cfg.State.Backend,
		"enabled", len(h.enabledIDs()))
	return nil
}

func (h *Host) resolveDataDir() (string, error) {
	dir := h.cfg.DataDir
	if dir == "" {
		var err error
		if dir, err = xdg.DataDir(); err != nil {
			return "", err
		}
	}
	if err := xdg.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// register adds the built-in and extra components. Invalid and duplicate
// registrations are logged by the registry and skipped; a closed window
// aborts startup.
func (h *Host) register() error {
	var cs []component.Component
	if h.builtins {
		if h.cfg.Wants(string(userdata.ID)) {
			cs = append(cs, userdata.New(h.hub, h.logger))
		}
		if h.cfg.Wants(string(economy.ID)) {
			cs = append(cs, economy.New(h.logger))
		}
	}
	cs = append(cs, h.extra...)

	for _, c := range cs {
		err := h.manager.Register(c)
		if errutil.HasCode(err, component.CodeRegistrationClosed) {
			return err
		}
	}
	return nil
}

func (h *Host) startSurfaces(ctx context.Context) error {
	if h.cfg.Autosave.Interval > 0 {
		h.autosave = autosave.New(h.manager,
			autosave.WithInterval(h.cfg.Autosave.Interval),
			autosave.WithLogger(h.logger))
		if err := h.autosave.Start(context.WithoutCancel(ctx)); err != nil {
			return err
		}
	}

	if h.cfg.Control.Enabled {
		opts := []control.Option{
			control.WithAdmin(h.admin),
			control.WithDispatcher(h.hub),
			control.WithLogger(h.logger),
			control.WithReadiness(h.manager.Started),
		}
		if h.cfg.Control.Socket != "" {
			opts = append(opts, control.WithSocketPath(h.cfg.Control.Socket))
		}
		h.control = control.NewServer("host", h.RequestShutdown, opts...)
		if err := h.control.Start(); err != nil {
			return err
		}
	}

	if h.cfg.Metrics.Addr != "" {
		observability.BuildInfo.WithLabelValues(h.version).Set(1)
		h.obs = h.deps.ObservabilityFactory(h.cfg.Metrics.Addr, h.manager.Started)
		h.obs.SetLogger(h.logger)
		errCh, err := h.obs.Start()
		if err != nil {
			return err
		}
		h.obsErrCh = errCh
	}
	return nil
}

// Stop runs the stop hook: stop autosave, disable every component in
// reverse order, stop the servers and close the state backend. Stop is
// idempotent.
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started || h.stopped {
		return nil
	}
	h.stopped = true
	h.teardown(ctx)
	h.logger.Info("host stopped")
	return nil
}

func (h *Host) teardown(ctx context.Context) {
	if h.autosave != nil {
		if err := h.autosave.Stop(ctx); err != nil {
			errutil.LogWarn(h.logger, "autosave did not stop cleanly", err)
		}
	}
	if h.manager != nil {
		h.manager.DisableAll(ctx)
	}
	if h.control != nil {
		if err := h.control.Stop(ctx); err != nil {
			errutil.LogWarn(h.logger, "control socket did not stop cleanly", err)
		}
	}
	if h.obs != nil {
		if err := h.obs.Stop(ctx); err != nil {
			errutil.LogWarn(h.logger, "observability server did not stop cleanly", err)
		}
	}
	h.cleanup()
}

func (h *Host) cleanup() {
	if h.closeBack != nil {
		h.closeBack()
		h.closeBack = nil
	}
}

// RequestShutdown asks Run to stop the host.
func (h *Host) RequestShutdown() {
	h.once.Do(func() { close(h.shutdown) })
}

// Run starts the host and blocks until SIGINT, SIGTERM, a shutdown request,
// an observability server failure or ctx cancellation, then stops it.
func (h *Host) Run(ctx context.Context) error {
	if err := h.Start(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		h.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-h.shutdown:
		h.logger.Info("shutdown requested")
	case <-ctx.Done():
		h.logger.Info("context cancelled, shutting down")
	case err, ok := <-h.obsErrCh:
		if ok && err != nil {
			runErr = oops.With("server", "observability").Wrap(err)
			errutil.LogError(h.logger, "server failed, shutting down", runErr)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
	defer cancel()
	if err := h.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Manager returns the component manager, or nil before Start. It blocks
// while Start or Stop is running.
func (h *Host) Manager() *component.Manager {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.manager
}

// Hub returns the command and event hub, or nil before Start.
func (h *Host) Hub() *integration.Hub {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hub
}

// DataDir returns the resolved data directory.
func (h *Host) DataDir() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dataDir
}

// SocketPath returns the control socket path, or "" when it is disabled.
func (h *Host) SocketPath() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.control == nil {
		return ""
	}
	return h.control.Path()
}

func (h *Host) enabledIDs() []component.ID {
	var ids []component.ID
	for _, c := range h.manager.Order() {
		if _, enabled := h.manager.LookupEnabled(c.ID()); enabled {
			ids = append(ids, c.ID())
		}
	}
	return ids
}
