// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package autosave

import "github.com/prometheus/client_golang/prometheus"

// Runs counts completed periodic and manual autosave passes.
var Runs = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "componenthost_autosave_runs_total",
		Help: "Total number of autosave passes",
	},
)

// RunDuration is the histogram of autosave pass duration.
var RunDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "componenthost_autosave_duration_seconds",
		Help:    "Autosave pass duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
)

// RegisterMetrics registers autosave metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Runs)
	reg.MustRegister(RunDuration)
}
