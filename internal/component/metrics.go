// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package component

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HookDuration is the histogram for lifecycle hook duration.
// Use RegisterMetrics to register this with a Prometheus registry.
var HookDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "componenthost_component_hook_duration_seconds",
		Help:    "Lifecycle hook duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"component", "phase"},
)

// HookFailures is the counter for failed lifecycle hooks.
var HookFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "componenthost_component_hook_failures_total",
		Help: "Total number of lifecycle hook failures",
	},
	[]string{"component", "phase"},
)

// EnabledComponents is the gauge of currently enabled components.
var EnabledComponents = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "componenthost_components_enabled",
		Help: "Number of currently enabled components",
	},
)

// RegisterMetrics registers component package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(HookDuration)
	reg.MustRegister(HookFailures)
	reg.MustRegister(EnabledComponents)
}

func recordHook(id ID, phase Phase, duration time.Duration, err error) {
	HookDuration.WithLabelValues(string(id), string(phase)).Observe(duration.Seconds())
	if err != nil {
		HookFailures.WithLabelValues(string(id), string(phase)).Inc()
	}
}
