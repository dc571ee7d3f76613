// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package component

// Integration is an ephemeral resource a component acquires while enabled,
// such as a command handler or an event subscription.
type Integration interface {
	// IntegrationKey identifies the integration in logs, e.g. "command:balance".
	IntegrationKey() string
}

// Integrator is the command/event subsystem integrations are registered with.
type Integrator interface {
	RegisterIntegration(owner ID, integ Integration) error
	UnregisterIntegration(integ Integration)
}

// nopIntegrator accepts every integration and does nothing with it.
type nopIntegrator struct{}

func (nopIntegrator) RegisterIntegration(ID, Integration) error { return nil }
func (nopIntegrator) UnregisterIntegration(Integration)         {}
