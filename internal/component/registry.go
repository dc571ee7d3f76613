// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package component

import (
	"log/slog"
	"sync"

	"github.com/holomush/componenthost/pkg/errutil"
)

// Registry accepts components during the registration window.
// Once closed it is frozen: lookups keep working, registration fails closed.
type Registry struct {
	mu         sync.RWMutex
	components []Component
	byID       map[ID]Component
	closed     bool
	logger     *slog.Logger
}

// NewRegistry creates an open registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byID:   make(map[ID]Component),
		logger: logger,
	}
}

// Register adds a component to the registry.
//
// An invalid component or a duplicate id is logged as a warning and returns
// INVALID_COMPONENT or DUPLICATE_COMPONENT without changing the registry.
// Registering after Close returns REGISTRATION_CLOSED, which indicates a bug
// in the host.
func (r *Registry) Register(c Component) error {
	if err := validate(c); err != nil {
		errutil.LogWarn(r.logger, "component rejected", err)
		return err
	}
	id := c.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistrationClosed(id)
	}
	if _, ok := r.byID[id]; ok {
		err := ErrDuplicateComponent(id)
		errutil.LogWarn(r.logger, "component is already registered", err, "component", string(id))
		return err
	}

	r.components = append(r.components, c)
	r.byID[id] = c
	return nil
}

func validate(c Component) error {
	if c == nil {
		return ErrInvalidComponent("component is nil")
	}
	b := c.base()
	if b == nil || b.rt == nil {
		return ErrInvalidComponent("component must embed a Base created with NewBase")
	}
	if c.ID() == "" {
		return ErrInvalidComponent("component id is empty")
	}
	return nil
}

// Close ends the registration window and returns the components in
// registration order. Calling Close again returns the same list.
func (r *Registry) Close() []Component {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	out := make([]Component, len(r.components))
	copy(out, r.components)
	return out
}

// Closed reports whether the registration window has ended.
func (r *Registry) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Lookup returns the registered component with the given id.
func (r *Registry) Lookup(id ID) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// Components returns the registered components in registration order.
// The returned slice is a copy and safe to modify.
func (r *Registry) Components() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Component, len(r.components))
	copy(out, r.components)
	return out
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.components)
}
