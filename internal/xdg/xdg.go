// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg provides XDG Base Directory paths for componenthost.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "componenthost"

// dir resolves $env/componenthost, or $HOME/<fallback...>/componenthost when
// env is unset.
func dir(env string, fallback ...string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", oops.Code("XDG_HOME_UNSET").
			With("variable", env).
			Errorf("neither %s nor HOME is set", env)
	}
	return filepath.Join(append(append([]string{home}, fallback...), appName)...), nil
}

// ConfigDir returns $XDG_CONFIG_HOME/componenthost, defaulting to ~/.config.
func ConfigDir() (string, error) { return dir("XDG_CONFIG_HOME", ".config") }

// DataDir returns $XDG_DATA_HOME/componenthost, defaulting to ~/.local/share.
// Component data and the enabled-state file live here.
func DataDir() (string, error) { return dir("XDG_DATA_HOME", ".local", "share") }

// StateDir returns $XDG_STATE_HOME/componenthost, defaulting to ~/.local/state.
func StateDir() (string, error) { return dir("XDG_STATE_HOME", ".local", "state") }

// RuntimeDir returns $XDG_RUNTIME_DIR/componenthost, falling back to
// StateDir()/run when no runtime directory is set.
func RuntimeDir() (string, error) {
	if os.Getenv("XDG_RUNTIME_DIR") != "" {
		return dir("XDG_RUNTIME_DIR")
	}
	state, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(state, "run"), nil
}

// ConfigFile returns the default configuration file path.
func ConfigFile() (string, error) {
	cfg, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "config.yaml"), nil
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.With("path", path).Wrapf(err, "create directory")
	}
	return nil
}
