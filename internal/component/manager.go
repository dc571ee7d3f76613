// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package component

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/componenthost/pkg/errutil"
)

// DefaultSaveLogThreshold is the save duration from which a timing line is logged.
const DefaultSaveLogThreshold = 5 * time.Millisecond

// Manager drives registered components through their lifecycle.
//
// Lifecycle operations (Start, Disable, DisableAll, Save, SaveAll, ResetAll,
// SetEnabled, Reload) are serialized with each other. Lookups never block on
// them, so hooks may call Lookup, LookupEnabled and Base dependency helpers.
type Manager struct {
	registry         *Registry
	store            EnabledStore
	resetFlag        ResetFlag
	integrator       Integrator
	logger           *slog.Logger
	saveLogThreshold time.Duration
	dataDir          string

	mu      sync.Mutex
	started bool
	ready   atomic.Bool

	orderMu    sync.RWMutex
	order      []Component
	resolution *Resolution
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithEnabledStore sets the persisted enabled-state store.
func WithEnabledStore(s EnabledStore) ManagerOption {
	return func(m *Manager) {
		m.store = s
	}
}

// WithResetFlag sets the process-wide reset flag consulted once by Start.
func WithResetFlag(f ResetFlag) ManagerOption {
	return func(m *Manager) {
		m.resetFlag = f
	}
}

// WithIntegrator sets the command/event subsystem integrations are registered with.
func WithIntegrator(i Integrator) ManagerOption {
	return func(m *Manager) {
		m.integrator = i
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithSaveLogThreshold sets the save duration from which a timing line is logged.
func WithSaveLogThreshold(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.saveLogThreshold = d
	}
}

// WithDataDir sets the root under which each enabled component gets its own
// data directory, named after its id.
func WithDataDir(dir string) ManagerOption {
	return func(m *Manager) {
		m.dataDir = dir
	}
}

// NewManager creates a component manager with an open registration window.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		logger:           slog.Default(),
		saveLogThreshold: DefaultSaveLogThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.integrator == nil {
		m.integrator = nopIntegrator{}
	}
	m.registry = NewRegistry(m.logger)
	return m
}

// Register adds a component during the registration window.
func (m *Manager) Register(c Component) error {
	return m.registry.Register(c)
}

// Start closes the registration window, resolves the activation order and
// enables every component whose stored flag allows it, then consults the reset
// flag. Individual component failures are logged and never returned; an error
// is returned only if the enabled-state store cannot be read or Start was
// already called. The registration window stays closed either way.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted()
	}
	m.started = true
	components := m.registry.Close()

	if err := m.store.Load(ctx); err != nil {
		return oops.With("operation", "load enabled state").Wrap(err)
	}

	res := Resolve(components, m.logger)

	m.orderMu.Lock()
	m.order = res.Order
	m.resolution = res
	m.orderMu.Unlock()

	// Materialize a flag for every known component so the stored state lists them all.
	for _, c := range components {
		m.store.Mark(c.ID(), m.store.IsEnabled(c.ID(), true))
	}

	enabled := m.activate(ctx, res.Order)
	m.checkReset(ctx)
	m.ready.Store(true)

	m.logger.Info("components started",
		"registered", len(components),
		"ordered", len(res.Order),
		"enabled", enabled,
		"excluded", len(res.Excluded))
	return nil
}

// Activate enables the given components in order and persists the enabled
// state. Only components in the ordered state are attempted, so a component
// is enabled at most once per run. Start calls it with the resolved order.
func (m *Manager) Activate(ctx context.Context, order []Component) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activate(ctx, order)
}

// activate returns the number of components enabled.
func (m *Manager) activate(ctx context.Context, order []Component) int {
	enabled := 0
	for _, c := range order {
		b := c.base()
		id := c.ID()

		if b.State() != StateOrdered {
			continue
		}
		if !m.store.IsEnabled(id, true) {
			b.setState(StateSkipped)
			m.logger.Info("component disabled by stored state, skipping", "component", string(id))
			continue
		}

		b.bind(m, m.componentDir(id))
		b.setState(StateEnabling)
		if err := m.prepareDataDir(b); err != nil {
			b.setState(StateFailed)
			errutil.LogError(m.logger, "failed to create component data directory", err, "component", string(id))
			continue
		}
		if err := m.invoke(ctx, c, PhaseEnable, c.Enable); err != nil {
			b.setState(StateFailed)
			m.releaseIntegrations(b)
			errutil.LogError(m.logger, "failed to enable component", err, "component", string(id))
			continue
		}

		b.setState(StateEnabled)
		EnabledComponents.Inc()
		enabled++

		if p, ok := c.(IntegrationProvider); ok {
			for _, integ := range p.Integrations() {
				m.registerIntegration(b, integ)
			}
		}
		m.logger.Debug("component enabled", "component", string(id))
	}

	if err := m.store.Flush(ctx); err != nil {
		errutil.LogError(m.logger, "failed to persist enabled state", err)
	}
	return enabled
}

// Disable saves and disables a component and releases its integrations.
// It is a no-op returning false when the component is not enabled.
func (m *Manager) Disable(ctx context.Context, c Component) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disable(ctx, c)
}

func (m *Manager) disable(ctx context.Context, c Component) bool {
	b := c.base()
	if !b.IsEnabled() {
		return false
	}

	//nolint:errcheck // save failures are logged inside save and must not block teardown
	m.save(ctx, c)

	if err := m.invoke(ctx, c, PhaseDisable, c.Disable); err != nil {
		errutil.LogError(m.logger, "failed to disable component", err, "component", string(c.ID()))
	}
	b.setState(StateDisabled)
	EnabledComponents.Dec()
	m.releaseIntegrations(b)

	m.logger.Info("component disabled", "component", string(c.ID()))
	return true
}

// DisableAll disables every component in exact reverse activation order.
func (m *Manager) DisableAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ready.Store(false)
	order := m.Order()
	for i := len(order) - 1; i >= 0; i-- {
		m.disable(ctx, order[i])
	}
}

// Save runs the save hook of an enabled component. Saving a component that is
// not enabled is a no-op.
func (m *Manager) Save(ctx context.Context, c Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(ctx, c)
}

func (m *Manager) save(ctx context.Context, c Component) error {
	if !c.base().IsEnabled() {
		return nil
	}
	id := c.ID()
	start := time.Now()
	if err := m.invoke(ctx, c, PhaseSave, c.Save); err != nil {
		errutil.LogError(m.logger, "failed to save component", err, "component", string(id))
		return err
	}
	if elapsed := time.Since(start); elapsed >= m.saveLogThreshold {
		m.logger.Info("component saved",
			"component", string(id),
			"duration_ms", elapsed.Milliseconds())
	}
	return nil
}

// SaveAll saves every enabled component in reverse activation order.
func (m *Manager) SaveAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := m.Order()
	for i := len(order) - 1; i >= 0; i-- {
		//nolint:errcheck // logged inside save; one failure must not stop the batch
		m.save(ctx, order[i])
	}
}

// ResetAll resets every enabled component in reverse activation order.
func (m *Manager) ResetAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetAll(ctx)
}

func (m *Manager) resetAll(ctx context.Context) {
	order := m.Order()
	for i := len(order) - 1; i >= 0; i-- {
		c := order[i]
		if !c.base().IsEnabled() {
			continue
		}
		if err := m.invoke(ctx, c, PhaseReset, c.Reset); err != nil {
			errutil.LogError(m.logger, "failed to reset component", err, "component", string(c.ID()))
		}
	}
}

// CheckReset runs ResetAll when the persisted reset flag is set, then always
// clears it. Start consults it once after activation.
func (m *Manager) CheckReset(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkReset(ctx)
}

func (m *Manager) checkReset(ctx context.Context) {
	if m.resetFlag == nil {
		return
	}
	requested, err := m.resetFlag.ResetRequested(ctx)
	if err != nil {
		errutil.LogError(m.logger, "failed to read reset flag", err)
	}
	if requested {
		m.logger.Info("reset requested, resetting enabled components")
		m.resetAll(ctx)
	}
	if err := m.resetFlag.ClearReset(ctx); err != nil {
		errutil.LogError(m.logger, "failed to clear reset flag", err)
	}
}

// SetEnabled persists the enabled flag for id. Disabling an enabled component
// also disables it immediately; enabling takes effect on the next start.
// It reports whether the running state changed. A persistence failure is
// returned after the in-memory flag and the running state were updated.
func (m *Manager) SetEnabled(ctx context.Context, id ID, enabled bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.registry.Lookup(id)
	if !ok {
		return false, ErrUnknownComponent(id)
	}

	persistErr := m.store.MarkAndPersist(ctx, id, enabled)
	if persistErr != nil {
		errutil.LogError(m.logger, "failed to persist enabled state", persistErr, "component", string(id))
	}

	changed := false
	if !enabled {
		changed = m.disable(ctx, c)
	}
	return changed, persistErr
}

// SaveComponent saves the enabled component with the given id.
func (m *Manager) SaveComponent(ctx context.Context, id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.enabledComponent(id)
	if err != nil {
		return err
	}
	return m.save(ctx, c)
}

// ReloadComponent runs the reload hook of the enabled component with the given id.
func (m *Manager) ReloadComponent(ctx context.Context, id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.enabledComponent(id)
	if err != nil {
		return err
	}
	r, ok := c.(Reloader)
	if !ok {
		return oops.Code(CodeInvalidComponent).
			With("component", string(id)).
			Errorf("component %s does not support reload", id)
	}
	if err := m.invoke(ctx, c, PhaseReload, r.Reload); err != nil {
		errutil.LogError(m.logger, "failed to reload component", err, "component", string(id))
		return err
	}
	return nil
}

func (m *Manager) componentDir(id ID) string {
	if m.dataDir == "" {
		return ""
	}
	return filepath.Join(m.dataDir, string(id))
}

func (m *Manager) prepareDataDir(b *Base) error {
	dir := b.DataDir()
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return oops.With("component", string(b.id)).With("path", dir).Wrap(err)
	}
	return nil
}

func (m *Manager) enabledComponent(id ID) (Component, error) {
	c, ok := m.registry.Lookup(id)
	if !ok {
		return nil, ErrUnknownComponent(id)
	}
	if !c.base().IsEnabled() {
		return nil, ErrNotEnabled(id)
	}
	return c, nil
}

// Lookup returns the registered component with the given id.
func (m *Manager) Lookup(id ID) (Component, bool) {
	return m.registry.Lookup(id)
}

// LookupEnabled returns the component with the given id if it is enabled.
func (m *Manager) LookupEnabled(id ID) (Component, bool) {
	c, ok := m.registry.Lookup(id)
	if !ok || !c.base().IsEnabled() {
		return nil, false
	}
	return c, true
}

// Order returns the activation order. It is empty before Start.
func (m *Manager) Order() []Component {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()
	out := make([]Component, len(m.order))
	copy(out, m.order)
	return out
}

// Excluded returns the components excluded by dependency resolution and why.
func (m *Manager) Excluded() map[ID]error {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()
	out := make(map[ID]error)
	if m.resolution == nil {
		return out
	}
	for id, err := range m.resolution.Excluded {
		out[id] = err
	}
	return out
}

// Started reports whether Start completed and teardown has not begun.
func (m *Manager) Started() bool {
	return m.ready.Load()
}

// Status describes one component for operators.
type Status struct {
	ID           ID     `json:"id"`
	State        State  `json:"state"`
	Enabled      bool   `json:"enabled"`
	Configured   bool   `json:"configured"`
	Hard         []ID   `json:"hard_dependencies,omitempty"`
	Soft         []ID   `json:"soft_dependencies,omitempty"`
	Integrations int    `json:"integrations"`
	Reason       string `json:"reason,omitempty"`
}

// Statuses returns the status of every registered component, activation
// order first, then the components that were not ordered.
func (m *Manager) Statuses() []Status {
	order := m.Order()
	excluded := m.Excluded()

	seen := make(map[ID]bool, len(order))
	list := make([]Component, 0, m.registry.Len())
	for _, c := range order {
		seen[c.ID()] = true
		list = append(list, c)
	}
	for _, c := range m.registry.Components() {
		if !seen[c.ID()] {
			list = append(list, c)
		}
	}

	statuses := make([]Status, 0, len(list))
	for _, c := range list {
		b := c.base()
		s := Status{
			ID:           c.ID(),
			State:        b.State(),
			Enabled:      b.IsEnabled(),
			Configured:   m.store.IsEnabled(c.ID(), true),
			Hard:         c.Dependencies(Hard),
			Soft:         c.Dependencies(Soft),
			Integrations: b.integrationCount(),
		}
		if err, ok := excluded[c.ID()]; ok {
			s.Reason = err.Error()
		}
		statuses = append(statuses, s)
	}
	return statuses
}

// invoke runs a hook inside the failure boundary: returned errors and panics
// become HOOK_FAILED errors tagged with the component and phase.
func (m *Manager) invoke(ctx context.Context, c Component, phase Phase, hook func(context.Context) error) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = errHookPanicked(r)
		}
		if err != nil {
			err = ErrHookFailed(c.ID(), phase, err)
		}
		recordHook(c.ID(), phase, time.Since(start), err)
	}()
	return hook(ctx)
}

// registerIntegration registers integ through the integrator on behalf of b.
func (m *Manager) registerIntegration(b *Base, integ Integration) bool {
	if integ == nil {
		return false
	}
	if err := m.integrator.RegisterIntegration(b.id, integ); err != nil {
		errutil.LogWarn(m.logger, "failed to register integration", err,
			"component", string(b.id),
			"integration", integ.IntegrationKey())
		return false
	}
	b.addIntegration(integ)
	return true
}

// releaseIntegrations unregisters every integration of b, newest first.
func (m *Manager) releaseIntegrations(b *Base) {
	integs := b.takeIntegrations()
	for i := len(integs) - 1; i >= 0; i-- {
		m.integrator.UnregisterIntegration(integs[i])
	}
}
