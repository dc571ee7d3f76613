// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package component

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Error codes for registry, resolver and lifecycle failures.
const (
	CodeDuplicateComponent     = "DUPLICATE_COMPONENT"
	CodeRegistrationClosed     = "REGISTRATION_CLOSED"
	CodeInvalidComponent       = "INVALID_COMPONENT"
	CodeMissingHardDependency  = "MISSING_HARD_DEPENDENCY"
	CodeMissingSoftDependency  = "MISSING_SOFT_DEPENDENCY"
	CodeExcludedDependency     = "EXCLUDED_DEPENDENCY"
	CodeCyclicDependency       = "CYCLIC_DEPENDENCY"
	CodeHookFailed             = "HOOK_FAILED"
	CodePersistenceWriteFailed = "PERSISTENCE_WRITE_FAILED"
	CodeUnknownComponent       = "UNKNOWN_COMPONENT"
	CodeAlreadyStarted         = "ALREADY_STARTED"
	CodeNotEnabled             = "NOT_ENABLED"
)

// ErrDuplicateComponent is returned when a component id is registered twice.
func ErrDuplicateComponent(id ID) error {
	return oops.Code(CodeDuplicateComponent).
		With("component", string(id)).
		Errorf("component %s is already registered", id)
}

// ErrRegistrationClosed is returned when Register is called after the window closed.
func ErrRegistrationClosed(id ID) error {
	return oops.Code(CodeRegistrationClosed).
		With("component", string(id)).
		Errorf("component %s registered after the registration window closed", id)
}

// ErrInvalidComponent is returned for nil components or ones not built with NewBase.
func ErrInvalidComponent(reason string) error {
	return oops.Code(CodeInvalidComponent).
		With("reason", reason).
		Errorf("invalid component: %s", reason)
}

// ErrMissingHardDependency reports a hard dependency that is not registered (or not enabled).
func ErrMissingHardDependency(id, dependency ID) error {
	return oops.Code(CodeMissingHardDependency).
		With("component", string(id)).
		With("dependency", string(dependency)).
		Errorf("hard dependency missing: %s", dependency)
}

// ErrMissingSoftDependency reports a soft dependency that is not registered.
func ErrMissingSoftDependency(id, dependency ID) error {
	return oops.Code(CodeMissingSoftDependency).
		With("component", string(id)).
		With("dependency", string(dependency)).
		Errorf("soft dependency missing: %s", dependency)
}

// ErrExcludedDependency reports a hard dependency that is registered but was
// itself excluded from the activation order. The cause is recorded as context,
// not wrapped, so the error keeps its own code.
func ErrExcludedDependency(id, dependency ID, cause error) error {
	reason := "excluded"
	if cause != nil {
		reason = cause.Error()
	}
	return oops.Code(CodeExcludedDependency).
		With("component", string(id)).
		With("dependency", string(dependency)).
		With("cause", reason).
		Errorf("hard dependency %s excluded: %s", dependency, reason)
}

// ErrCyclicDependency reports a cycle of hard dependencies. path lists the
// cycle with its first element repeated at the end.
func ErrCyclicDependency(path []ID) error {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = string(id)
	}
	cycle := strings.Join(parts, " -> ")
	return oops.Code(CodeCyclicDependency).
		With("cycle", cycle).
		Errorf("cyclic hard dependency: %s", cycle)
}

// ErrHookFailed wraps a failure returned by (or recovered from) a lifecycle hook.
func ErrHookFailed(id ID, phase Phase, cause error) error {
	return oops.Code(CodeHookFailed).
		With("component", string(id)).
		With("phase", string(phase)).
		Wrapf(cause, "%s hook failed", phase)
}

// errHookPanicked converts a recovered panic value into an error.
func errHookPanicked(recovered any) error {
	if err, ok := recovered.(error); ok {
		return oops.With("panic", true).Wrapf(err, "hook panicked")
	}
	return oops.With("panic", true).Errorf("hook panicked: %s", fmt.Sprint(recovered))
}

// ErrPersistenceWriteFailed reports that a state backend could not be written.
func ErrPersistenceWriteFailed(target string, cause error) error {
	return oops.Code(CodePersistenceWriteFailed).
		With("target", target).
		Wrapf(cause, "failed to persist component state")
}

// ErrUnknownComponent is returned by id-based operations for unregistered ids.
func ErrUnknownComponent(id ID) error {
	return oops.Code(CodeUnknownComponent).
		With("component", string(id)).
		Errorf("unknown component: %s", id)
}

// ErrAlreadyStarted is returned when Start is called twice.
func ErrAlreadyStarted() error {
	return oops.Code(CodeAlreadyStarted).Errorf("component manager already started")
}

// ErrNotEnabled is returned by id-based operations that need an enabled component.
func ErrNotEnabled(id ID) error {
	return oops.Code(CodeNotEnabled).
		With("component", string(id)).
		Errorf("component %s is not enabled", id)
}
