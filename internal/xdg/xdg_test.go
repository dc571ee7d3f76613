// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/componenthost/pkg/errutil"
)

func TestDirs(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		fn   func() (string, error)
		want string
	}{
		{"config from env", map[string]string{"XDG_CONFIG_HOME": "/custom/config"}, ConfigDir, "/custom/config/componenthost"},
		{"config default", map[string]string{"XDG_CONFIG_HOME": "", "HOME": "/home/op"}, ConfigDir, "/home/op/.config/componenthost"},
		{"data from env", map[string]string{"XDG_DATA_HOME": "/custom/data"}, DataDir, "/custom/data/componenthost"},
		{"data default", map[string]string{"XDG_DATA_HOME": "", "HOME": "/home/op"}, DataDir, "/home/op/.local/share/componenthost"},
		{"state default", map[string]string{"XDG_STATE_HOME": "", "HOME": "/home/op"}, StateDir, "/home/op/.local/state/componenthost"},
		{"runtime from env", map[string]string{"XDG_RUNTIME_DIR": "/run/user/1000"}, RuntimeDir, "/run/user/1000/componenthost"},
		{"runtime fallback", map[string]string{"XDG_RUNTIME_DIR": "", "XDG_STATE_HOME": "/custom/state"}, RuntimeDir, "/custom/state/componenthost/run"},
		{"config file", map[string]string{"XDG_CONFIG_HOME": "/etc/xdg"}, ConfigFile, "/etc/xdg/componenthost/config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got, err := tt.fn()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirs_NoHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "")

	_, err := DataDir()
	errutil.AssertErrorCode(t, err, "XDG_HOME_UNSET")
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}
