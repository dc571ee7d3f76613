// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/pkg/errutil"
)

func startServer(t *testing.T, ready ReadinessChecker, registrars ...Registrar) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready, registrars...)
	server.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	require.NotEmpty(t, server.Addr())
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, nil, component.RegisterMetrics)
	BuildInfo.WithLabelValues("test").Set(1)

	status, body := get(t, server, "/metrics")
	require.Equal(t, http.StatusOK, status)

	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, "componenthost_components_enabled")
	assert.Contains(t, body, `componenthost_build_info{version="test"} 1`)
}

func TestServer_RegistrarCollectorsAreExported(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "componenthost_test_events_total",
		Help: "test counter",
	})
	server := startServer(t, nil, func(reg prometheus.Registerer) { reg.MustRegister(counter) })

	counter.Add(2)

	_, body := get(t, server, "/metrics")
	assert.Contains(t, body, "componenthost_test_events_total 2")
}

func TestServer_Liveness(t *testing.T) {
	server := startServer(t, func() bool { return false })

	status, body := get(t, server, "/healthz/liveness")
	assert.Equal(t, http.StatusOK, status, "liveness ignores readiness")
	assert.Equal(t, "ok", strings.TrimSpace(body))
}

func TestServer_ReadinessFollowsChecker(t *testing.T) {
	var ready atomic.Bool
	server := startServer(t, ready.Load)

	status, body := get(t, server, "/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "not ready", strings.TrimSpace(body))

	ready.Store(true)
	status, body = get(t, server, "/healthz/readiness")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", strings.TrimSpace(body))
}

func TestServer_ReadinessWithNilChecker(t *testing.T) {
	server := startServer(t, nil)

	status, _ := get(t, server, "/healthz/readiness")
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)

	_, err := server.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_RUNNING")
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	assert.NoError(t, server.Stop(context.Background()))
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	server.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	errCh, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Stop(context.Background()) })

	require.NoError(t, server.listener.Close())

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("serve error was not reported")
	}
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	server.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	errCh, err := server.Start()
	require.NoError(t, err)
	require.NoError(t, server.Stop(context.Background()))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error channel not closed")
	}
}

func TestServer_ListenFailureAllowsRetry(t *testing.T) {
	first := startServer(t, nil)

	second := NewServer(first.Addr(), nil)
	_, err := second.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_LISTEN_FAILED")
	assert.Empty(t, second.Addr())

	// A failed start leaves the server stopped, so Stop is a no-op.
	assert.NoError(t, second.Stop(context.Background()))
}

func TestServer_ProbesRejectWrites(t *testing.T) {
	server := startServer(t, nil)

	resp, err := http.Post("http://"+server.Addr()+"/healthz/liveness", "text/plain", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
