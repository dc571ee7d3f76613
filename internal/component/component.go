// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package component provides component registration, dependency resolution
// and lifecycle orchestration for the host process.
package component

import (
	"context"
	"sync"
)

// ID is the stable identity of a component, unique within a run.
type ID string

// DependencyKind selects between hard and soft dependency declarations.
type DependencyKind int

// Dependency kinds.
const (
	// Hard dependencies must be registered and resolvable or the dependent is excluded.
	Hard DependencyKind = iota
	// Soft dependencies only affect ordering; a missing one is a warning.
	Soft
)

func (k DependencyKind) String() string {
	if k == Hard {
		return "hard"
	}
	return "soft"
}

// Phase names a lifecycle hook.
type Phase string

// Lifecycle hook phases.
const (
	PhaseEnable  Phase = "enable"
	PhaseDisable Phase = "disable"
	PhaseSave    Phase = "save"
	PhaseReset   Phase = "reset"
	PhaseReload  Phase = "reload"
)

// State is the lifecycle position of a component within the current run.
type State string

// Component states.
const (
	StateRegistered State = "registered"
	StateOrdered    State = "ordered"
	StateExcluded   State = "excluded"
	StateSkipped    State = "skipped"
	StateEnabling   State = "enabling"
	StateEnabled    State = "enabled"
	StateFailed     State = "failed"
	StateDisabled   State = "disabled"
)

// Component is a named unit with a four-phase lifecycle.
//
// Implementations embed Base, which supplies the identity, dependency
// declarations, no-op hooks and the runtime state the Manager drives.
// Hooks are only ever called by the Manager, never concurrently with each other.
type Component interface {
	ID() ID
	// Dependencies returns the declared dependencies of the given kind.
	// A nil slice means none were declared.
	Dependencies(kind DependencyKind) []ID
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Save(ctx context.Context) error
	Reset(ctx context.Context) error

	base() *Base
}

// Reloader is implemented by components that can re-read their configuration
// while enabled.
type Reloader interface {
	Reload(ctx context.Context) error
}

// IntegrationProvider is implemented by components whose integrations should
// be registered automatically once they are enabled.
type IntegrationProvider interface {
	Integrations() []Integration
}

// Base is embedded by every component.
type Base struct {
	id   ID
	hard []ID
	soft []ID
	rt   *runtimeState
}

// runtimeState is shared by copies of a Base so components can be passed by value
// before registration.
type runtimeState struct {
	mu           sync.Mutex
	state        State
	manager      *Manager
	dataDir      string
	integrations []Integration
}

// BaseOption configures a Base.
type BaseOption func(*Base)

// WithHardDependencies declares hard dependencies in order. Calling it with no
// ids declares an empty list.
func WithHardDependencies(ids ...ID) BaseOption {
	return func(b *Base) {
		b.hard = append([]ID{}, ids...)
	}
}

// WithSoftDependencies declares soft dependencies in order. Calling it with no
// ids declares an empty list.
func WithSoftDependencies(ids ...ID) BaseOption {
	return func(b *Base) {
		b.soft = append([]ID{}, ids...)
	}
}

// NewBase creates the embeddable base for a component with the given id.
func NewBase(id ID, opts ...BaseOption) Base {
	b := Base{
		id: id,
		rt: &runtimeState{state: StateRegistered},
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// ID returns the component id.
func (b *Base) ID() ID { return b.id }

// Dependencies returns a copy of the declared dependencies, preserving nil.
func (b *Base) Dependencies(kind DependencyKind) []ID {
	deps := b.soft
	if kind == Hard {
		deps = b.hard
	}
	if deps == nil {
		return nil
	}
	return append([]ID{}, deps...)
}

// Enable is the default enable hook.
func (b *Base) Enable(context.Context) error { return nil }

// Disable is the default disable hook.
func (b *Base) Disable(context.Context) error { return nil }

// Save is the default save hook.
func (b *Base) Save(context.Context) error { return nil }

// Reset is the default reset hook.
func (b *Base) Reset(context.Context) error { return nil }

func (b *Base) base() *Base { return b }

// IsEnabled reports whether the component is currently enabled.
func (b *Base) IsEnabled() bool {
	return b.State() == StateEnabled
}

// State returns the lifecycle state of the component.
func (b *Base) State() State {
	if b.rt == nil {
		return ""
	}
	b.rt.mu.Lock()
	defer b.rt.mu.Unlock()
	return b.rt.state
}

// Runtime returns the manager driving this component, or nil before the
// component entered the activation pass.
func (b *Base) Runtime() *Manager {
	if b.rt == nil {
		return nil
	}
	b.rt.mu.Lock()
	defer b.rt.mu.Unlock()
	return b.rt.manager
}

// DataDir returns the directory reserved for this component's files, or ""
// when the host has no data directory configured.
func (b *Base) DataDir() string {
	if b.rt == nil {
		return ""
	}
	b.rt.mu.Lock()
	defer b.rt.mu.Unlock()
	return b.rt.dataDir
}

// Register acquires an integration (command, subscription) through the
// runtime. The integration is released automatically when the component is
// disabled. It returns false when registration failed; the failure is logged.
func (b *Base) Register(integ Integration) bool {
	m := b.Runtime()
	if m == nil {
		return false
	}
	return m.registerIntegration(b, integ)
}

// SoftDependency returns the component with the given id if it is registered
// and enabled.
func (b *Base) SoftDependency(id ID) (Component, bool) {
	m := b.Runtime()
	if m == nil {
		return nil, false
	}
	return m.LookupEnabled(id)
}

// HardDependency is SoftDependency for dependencies the caller cannot work
// without; a missing or disabled dependency is a MISSING_HARD_DEPENDENCY error.
func (b *Base) HardDependency(id ID) (Component, error) {
	dep, ok := b.SoftDependency(id)
	if !ok {
		return nil, ErrMissingHardDependency(b.id, id)
	}
	return dep, nil
}

// As narrows a component to a concrete type.
func As[T Component](c Component) (T, bool) {
	t, ok := c.(T)
	return t, ok
}

// DependencyAs looks up an enabled dependency of c and narrows it to T.
func DependencyAs[T Component](c Component, id ID) (T, error) {
	var zero T
	dep, err := c.base().HardDependency(id)
	if err != nil {
		return zero, err
	}
	t, ok := dep.(T)
	if !ok {
		return zero, ErrInvalidComponent("dependency " + string(id) + " has unexpected type")
	}
	return t, nil
}

func (b *Base) setState(s State) {
	b.rt.mu.Lock()
	b.rt.state = s
	b.rt.mu.Unlock()
}

// bind sets the runtime back-reference and data directory exactly once.
func (b *Base) bind(m *Manager, dataDir string) {
	b.rt.mu.Lock()
	defer b.rt.mu.Unlock()
	if b.rt.manager == nil {
		b.rt.manager = m
		b.rt.dataDir = dataDir
	}
}

func (b *Base) addIntegration(integ Integration) {
	b.rt.mu.Lock()
	b.rt.integrations = append(b.rt.integrations, integ)
	b.rt.mu.Unlock()
}

// takeIntegrations removes and returns every acquired integration.
func (b *Base) takeIntegrations() []Integration {
	b.rt.mu.Lock()
	defer b.rt.mu.Unlock()
	integs := b.rt.integrations
	b.rt.integrations = nil
	return integs
}

// integrationCount returns the number of integrations currently held.
func (b *Base) integrationCount() int {
	b.rt.mu.Lock()
	defer b.rt.mu.Unlock()
	return len(b.rt.integrations)
}
