// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads the host configuration from defaults, an optional
// YAML file and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// CodeConfigInvalid is returned for configuration that fails to load or validate.
const CodeConfigInvalid = "CONFIG_INVALID"

// State backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config is the host configuration.
type Config struct {
	// DataDir holds the state files and per-component data directories.
	// Empty means the XDG data directory.
	DataDir  string         `koanf:"data_dir" json:"data_dir,omitempty" jsonschema:"description=Data directory; defaults to XDG_DATA_HOME/componenthost"`
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
	Control  ControlConfig  `koanf:"control" json:"control,omitempty"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty"`
	Autosave AutosaveConfig `koanf:"autosave" json:"autosave,omitempty"`
	Save     SaveConfig     `koanf:"save" json:"save,omitempty"`
	State    StateConfig    `koanf:"state" json:"state,omitempty"`
	// Reset requests a one-shot reset of every enabled component on this start.
	Reset bool `koanf:"reset" json:"reset,omitempty"`
	// Components lists the sample components to register. Empty registers all.
	Components []string `koanf:"components" json:"components,omitempty" jsonschema:"description=Component ids to register; empty registers every built-in component"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text,default=json"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
}

// ControlConfig configures the control socket.
type ControlConfig struct {
	Enabled bool `koanf:"enabled" json:"enabled,omitempty" jsonschema:"default=true"`
	// Socket overrides the socket path.
	Socket string `koanf:"socket" json:"socket,omitempty"`
}

// MetricsConfig configures the observability server. An empty address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// AutosaveConfig configures the periodic save.
type AutosaveConfig struct {
	Interval time.Duration `koanf:"interval" json:"interval,omitempty" jsonschema:"type=string,description=Go duration such as 2m; 0 disables autosave"`
}

// SaveConfig configures save logging.
type SaveConfig struct {
	LogThreshold time.Duration `koanf:"log_threshold" json:"log_threshold,omitempty" jsonschema:"type=string,description=Saves at least this long are logged"`
}

// StateConfig selects and configures the enabled-state backend.
type StateConfig struct {
	Backend        string `koanf:"backend" json:"backend,omitempty" jsonschema:"enum=file,enum=postgres,default=file"`
	ComponentsFile string `koanf:"components_file" json:"components_file,omitempty"`
	RuntimeFile    string `koanf:"runtime_file" json:"runtime_file,omitempty"`
	DatabaseURL    string `koanf:"database_url" json:"database_url,omitempty"`
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"log.format":            "json",
		"log.level":             "info",
		"control.enabled":       true,
		"metrics.addr":          "",
		"autosave.interval":     "2m",
		"save.log_threshold":    "5ms",
		"state.backend":         BackendFile,
		"state.components_file": "components.yml",
		"state.runtime_file":    "runtime.yml",
		"reset":                 false,
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"data-dir":          "data_dir",
	"log-format":        "log.format",
	"log-level":         "log.level",
	"control":           "control.enabled",
	"control-socket":    "control.socket",
	"metrics-addr":      "metrics.addr",
	"autosave-interval": "autosave.interval",
	"state-backend":     "state.backend",
	"database-url":      "state.database_url",
	"components":        "components",
	"reset":             "reset",
}

// Load reads configuration from defaults, then the YAML file at path (if
// path is non-empty), then flags that were set explicitly. A missing file
// is an error only when required is true.
func Load(path string, required bool, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, v := range Defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, oops.Code(CodeConfigInvalid).With("key", key).Wrapf(err, "set default")
		}
	}

	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, oops.Code(CodeConfigInvalid).With("path", path).Wrapf(err, "load config file")
			}
		case required || !errors.Is(statErr, fs.ErrNotExist):
			return nil, oops.Code(CodeConfigInvalid).With("path", path).Wrapf(statErr, "config file")
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code(CodeConfigInvalid).Wrapf(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code(CodeConfigInvalid).Wrapf(err, "decode config")
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return oops.Code(CodeConfigInvalid).With("key", key).Errorf(format, args...)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", "log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if c.Autosave.Interval < 0 {
		return invalid("autosave.interval", "autosave.interval must not be negative")
	}
	if c.Autosave.Interval > 0 && c.Autosave.Interval < time.Second {
		return invalid("autosave.interval", "autosave.interval must be at least 1s, got %s", c.Autosave.Interval)
	}
	if c.Save.LogThreshold < 0 {
		return invalid("save.log_threshold", "save.log_threshold must not be negative")
	}

	switch c.State.Backend {
	case BackendFile:
		if c.State.ComponentsFile == "" || c.State.RuntimeFile == "" {
			return invalid("state", "state.components_file and state.runtime_file are required for the file backend")
		}
	case BackendPostgres:
		if c.State.DatabaseURL == "" && os.Getenv("DATABASE_URL") == "" {
			return invalid("state.database_url", "state.database_url or DATABASE_URL is required for the postgres backend")
		}
	default:
		return invalid("state.backend", "state.backend must be 'file' or 'postgres', got %q", c.State.Backend)
	}
	return nil
}

// DatabaseURL returns the configured database URL, falling back to DATABASE_URL.
func (c *Config) DatabaseURL() string {
	if c.State.DatabaseURL != "" {
		return c.State.DatabaseURL
	}
	return os.Getenv("DATABASE_URL")
}

// Wants reports whether the component id should be registered.
func (c *Config) Wants(id string) bool {
	if len(c.Components) == 0 {
		return true
	}
	for _, want := range c.Components {
		if want == id {
			return true
		}
	}
	return false
}
