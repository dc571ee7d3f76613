// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package state

import (
	"context"
	"sync"
)

// runtimeDoc is the on-disk shape of the runtime flags file.
type runtimeDoc struct {
	Reset bool `yaml:"reset"`
}

// FileFlags is a component.ResetFlag stored in a small YAML document
// (reset: false). The file is read on every query so an operator can set the
// flag by hand between runs.
type FileFlags struct {
	path string
	opts options
	mu   sync.Mutex
}

// NewFileFlags creates flags backed by the YAML file at path.
func NewFileFlags(path string, opts ...Option) *FileFlags {
	return &FileFlags{path: path, opts: newOptions(opts)}
}

// ResetRequested reports whether the reset flag is set. A missing file means
// no reset.
func (f *FileFlags) ResetRequested(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var doc runtimeDoc
	if _, err := readYAML(f.path, &doc); err != nil {
		return false, err
	}
	return doc.Reset, nil
}

// ClearReset persists reset: false.
func (f *FileFlags) ClearReset(ctx context.Context) error {
	return f.write(ctx, false)
}

// RequestReset persists reset: true; the next start resets every enabled component.
func (f *FileFlags) RequestReset(ctx context.Context) error {
	return f.write(ctx, true)
}

func (f *FileFlags) write(ctx context.Context, reset bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeYAML(ctx, f.path, runtimeDoc{Reset: reset}, f.opts)
}
