// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package integration

import (
	"github.com/samber/oops"

	"github.com/holomush/componenthost/internal/component"
)

// Error codes for integration registration and dispatch.
const (
	CodeCommandConflict        = "COMMAND_CONFLICT"
	CodeCommandNotFound        = "COMMAND_NOT_FOUND"
	CodePermissionDenied       = "PERMISSION_DENIED"
	CodeCommandFailed          = "COMMAND_FAILED"
	CodeEmptyInput             = "EMPTY_INPUT"
	CodeInvalidIntegration     = "INVALID_INTEGRATION"
	CodeUnsupportedIntegration = "UNSUPPORTED_INTEGRATION"
	CodeInvalidEvent           = "INVALID_EVENT"
)

// ErrCommandConflict is returned when a command name is already taken.
func ErrCommandConflict(name string, owner, existing component.ID) error {
	return oops.Code(CodeCommandConflict).
		With("command", name).
		With("component", string(owner)).
		With("registered_by", string(existing)).
		Errorf("command %s is already registered by %s", name, existing)
}

// ErrCommandNotFound is returned by Dispatch for unknown command names.
func ErrCommandNotFound(name string) error {
	return oops.Code(CodeCommandNotFound).
		With("command", name).
		Errorf("unknown command: %s", name)
}

// ErrPermissionDenied is returned when a non-operator runs an operator command.
func ErrPermissionDenied(name, caller string) error {
	return oops.Code(CodePermissionDenied).
		With("command", name).
		With("caller", caller).
		Errorf("%s may not run %s", caller, name)
}

// ErrInvalidIntegration is returned for malformed commands and subscriptions.
func ErrInvalidIntegration(key, reason string) error {
	return oops.Code(CodeInvalidIntegration).
		With("integration", key).
		Errorf("invalid integration %s: %s", key, reason)
}
