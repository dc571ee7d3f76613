// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package control

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Requests counts control socket requests by route pattern and status code.
var Requests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "componenthost_control_requests_total",
		Help: "Total number of control socket requests",
	},
	[]string{"route", "status"},
)

// RegisterMetrics registers control socket metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Requests)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts requests by the mux pattern that served them.
func instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		Requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
