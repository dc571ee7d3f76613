// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/componenthost/internal/control"
)

func TestStatus_RunningHost(t *testing.T) {
	isolate(t)
	sock := startHost(t)

	out, err := execute(t, "--socket", sock, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "SOCKET")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "healthy")
}

func TestStatus_JSON(t *testing.T) {
	isolate(t)
	sock := startHost(t)

	out, err := execute(t, "--socket", sock, "status", "--json")
	require.NoError(t, err)

	var st HostStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.Running)
	assert.True(t, st.Ready)
	assert.Equal(t, sock, st.Socket)
	assert.Positive(t, st.PID)
}

func TestStatus_StoppedHostIsNotAnError(t *testing.T) {
	isolate(t)
	sock := filepath.Join(t.TempDir(), "none.sock")

	out, err := execute(t, "--socket", sock, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "stopped")
	assert.Contains(t, out, "not reachable")
}

func TestShutdown_StopsHost(t *testing.T) {
	isolate(t)
	sock := startHost(t)

	out, err := execute(t, "--socket", sock, "shutdown")
	require.NoError(t, err)
	assert.Contains(t, out, "shutdown requested")

	// The host only stops when Run observes the request; the socket is still up.
	_, err = control.NewClient(sock, time.Second).Health(context.Background())
	assert.NoError(t, err)
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{seconds: 0, want: "0s"},
		{seconds: 59, want: "59s"},
		{seconds: 61, want: "1m 1s"},
		{seconds: 3600, want: "1h 0m"},
		{seconds: 7322, want: "2h 2m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatUptime(tt.seconds))
		})
	}
}

func TestFormatStatusTable(t *testing.T) {
	running := formatStatusTable(HostStatus{
		Socket: "/run/c.sock", Running: true, Health: "healthy", Ready: true, PID: 42, UptimeSeconds: 90,
	})
	assert.Contains(t, running, "/run/c.sock")
	assert.Contains(t, running, "42")
	assert.Contains(t, running, "1m 30s")

	stopped := formatStatusTable(HostStatus{Socket: "/run/c.sock", Error: "not reachable"})
	assert.Contains(t, stopped, "stopped")
	assert.Contains(t, stopped, "not reachable")
}
