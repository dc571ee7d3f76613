// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package state provides file-backed persistence for component enabled flags
// and the process-wide reset flag.
package state

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"gopkg.in/yaml.v3"

	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/pkg/errutil"
)

// CodeStateCorrupt is returned when a state file exists but cannot be parsed.
const CodeStateCorrupt = "STATE_CORRUPT"

// CorruptSuffix is appended to the path of an unparsable components file
// when FileStore keeps a copy of it.
const CorruptSuffix = ".corrupt"

// Default retry policy for writes.
const (
	DefaultWriteRetries = 3
	DefaultRetryBase    = 50 * time.Millisecond
)

type options struct {
	logger  *slog.Logger
	retries uint64
	base    time.Duration
}

// Option configures FileStore and FileFlags.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRetry sets how many times a failed write is retried and the initial
// backoff, which doubles on every retry.
func WithRetry(retries uint64, base time.Duration) Option {
	return func(o *options) {
		o.retries = retries
		o.base = base
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:  slog.Default(),
		retries: DefaultWriteRetries,
		base:    DefaultRetryBase,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// FileStore is a component.EnabledStore backed by a flat YAML document
// mapping component ids to booleans.
type FileStore struct {
	path string
	opts options

	mu      sync.RWMutex
	enabled map[component.ID]bool

	// writeMu serializes flushes so renames land in call order.
	writeMu sync.Mutex
}

// NewFileStore creates a store for the YAML file at path. Nothing is read
// until Load.
func NewFileStore(path string, opts ...Option) *FileStore {
	return &FileStore{
		path:    path,
		opts:    newOptions(opts),
		enabled: make(map[component.ID]bool),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the file. A missing file is an empty mapping. Entries that are
// not booleans are logged and dropped, so they fall back to the caller's
// default. A file that does not parse at all is logged, copied aside to
// <path>.corrupt and treated as empty.
func (s *FileStore) Load(_ context.Context) error {
	var doc map[string]any
	found, err := readYAML(s.path, &doc)
	if err != nil {
		if !errutil.HasCode(err, CodeStateCorrupt) {
			return err
		}
		errutil.LogError(s.opts.logger, "component state file is unreadable, using defaults", err)
		s.preserveCorrupt()
		doc = nil
	}

	enabled := make(map[component.ID]bool, len(doc))
	for id, v := range doc {
		b, ok := v.(bool)
		if !ok {
			s.opts.logger.Warn("ignoring non-boolean component state entry",
				"path", s.path,
				"component", id,
				"value", v)
			continue
		}
		enabled[component.ID(id)] = b
	}

	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()

	s.opts.logger.Debug("loaded component state",
		"path", s.path,
		"found", found,
		"entries", len(enabled))
	return nil
}

// preserveCorrupt copies the unreadable file to <path>.corrupt before the
// next flush replaces it.
func (s *FileStore) preserveCorrupt() {
	//nolint:gosec // path comes from operator configuration
	data, err := os.ReadFile(s.path)
	if err == nil {
		err = writeAtomic(s.path+CorruptSuffix, data)
	}
	if err != nil {
		s.opts.logger.Warn("failed to preserve corrupt state file", "path", s.path, "error", err)
		return
	}
	s.opts.logger.Warn("corrupt state file preserved", "copy", s.path+CorruptSuffix)
}

// IsEnabled returns the stored flag or def when absent.
func (s *FileStore) IsEnabled(id component.ID, def bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.enabled[id]
	if !ok {
		return def
	}
	return v
}

// Mark updates the in-memory mapping.
func (s *FileStore) Mark(id component.ID, enabled bool) {
	s.mu.Lock()
	s.enabled[id] = enabled
	s.mu.Unlock()
}

// MarkAndPersist updates the mapping and flushes it. The in-memory value is
// kept even when the write fails.
func (s *FileStore) MarkAndPersist(ctx context.Context, id component.ID, enabled bool) error {
	s.Mark(id, enabled)
	return s.Flush(ctx)
}

// Flush writes the whole mapping atomically.
func (s *FileStore) Flush(ctx context.Context) error {
	s.mu.RLock()
	doc := make(map[string]bool, len(s.enabled))
	for id, v := range s.enabled {
		doc[string(id)] = v
	}
	s.mu.RUnlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeYAML(ctx, s.path, doc, s.opts)
}

// Snapshot returns a copy of the mapping.
func (s *FileStore) Snapshot() map[component.ID]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[component.ID]bool, len(s.enabled))
	for k, v := range s.enabled {
		out[k] = v
	}
	return out
}

// readYAML decodes path into out and reports whether the file existed.
func readYAML(path string, out any) (bool, error) {
	//nolint:gosec // path comes from operator configuration
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, oops.With("path", path).Wrapf(err, "read state file")
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return true, oops.Code(CodeStateCorrupt).
			With("path", path).
			Wrapf(err, "parse state file")
	}
	return true, nil
}

// writeYAML encodes doc and replaces path with it through a temp file and
// rename, retrying with exponential backoff.
func writeYAML(ctx context.Context, path string, doc any, o options) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return component.ErrPersistenceWriteFailed(path, err)
	}

	backoff := retry.WithMaxRetries(o.retries, retry.NewExponential(o.base))
	attempt := 0
	err = retry.Do(ctx, backoff, func(_ context.Context) error {
		attempt++
		if werr := writeAtomic(path, data); werr != nil {
			o.logger.Debug("state write failed",
				"path", path,
				"attempt", attempt,
				"error", werr)
			return retry.RetryableError(werr)
		}
		return nil
	})
	if err != nil {
		return component.ErrPersistenceWriteFailed(path, err)
	}
	return nil
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
