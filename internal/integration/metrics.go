// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package integration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status labels for command execution metrics.
const (
	StatusSuccess          = "success"
	StatusError            = "error"
	StatusNotFound         = "not_found"
	StatusPermissionDenied = "permission_denied"
)

// CommandExecutions is the counter for command executions.
// Use RegisterMetrics to register this with a Prometheus registry.
var CommandExecutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "componenthost_command_executions_total",
		Help: "Total number of command executions",
	},
	[]string{"command", "component", "status"},
)

// CommandDuration is the histogram for command execution duration.
var CommandDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "componenthost_command_duration_seconds",
		Help:    "Command execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"command", "component"},
)

// EventsPublished is the counter for published events.
var EventsPublished = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "componenthost_events_published_total",
		Help: "Total number of events published",
	},
	[]string{"stream", "type"},
)

// RegisterMetrics registers integration metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CommandExecutions)
	reg.MustRegister(CommandDuration)
	reg.MustRegister(EventsPublished)
}

func recordCommand(command, owner, status string, duration time.Duration) {
	CommandExecutions.WithLabelValues(command, owner, status).Inc()
	if status == StatusSuccess || status == StatusError {
		CommandDuration.WithLabelValues(command, owner).Observe(duration.Seconds())
	}
}
