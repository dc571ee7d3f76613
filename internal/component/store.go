// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package component

import (
	"context"
	"sync"
)

// EnabledStore persists the per-component "should be active" flag.
// Ids absent from the store default to the value passed to IsEnabled.
// Implementations keep the in-memory mapping authoritative for the current
// run even when a write fails.
type EnabledStore interface {
	// Load reads the backing medium. A missing medium is an empty mapping.
	Load(ctx context.Context) error
	IsEnabled(id ID, def bool) bool
	// Mark updates the in-memory mapping only.
	Mark(id ID, enabled bool)
	// MarkAndPersist updates the mapping and flushes it.
	MarkAndPersist(ctx context.Context, id ID, enabled bool) error
	Flush(ctx context.Context) error
}

// ResetFlag is the process-wide persisted reset request.
type ResetFlag interface {
	ResetRequested(ctx context.Context) (bool, error)
	ClearReset(ctx context.Context) error
	RequestReset(ctx context.Context) error
}

// MemoryStore is an EnabledStore and ResetFlag kept only in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	enabled map[ID]bool
	reset   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{enabled: make(map[ID]bool)}
}

// Load is a no-op.
func (s *MemoryStore) Load(context.Context) error { return nil }

// IsEnabled returns the stored flag or def when absent.
func (s *MemoryStore) IsEnabled(id ID, def bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.enabled[id]
	if !ok {
		return def
	}
	return v
}

// Mark sets the flag for id.
func (s *MemoryStore) Mark(id ID, enabled bool) {
	s.mu.Lock()
	s.enabled[id] = enabled
	s.mu.Unlock()
}

// MarkAndPersist sets the flag for id.
func (s *MemoryStore) MarkAndPersist(_ context.Context, id ID, enabled bool) error {
	s.Mark(id, enabled)
	return nil
}

// Flush is a no-op.
func (s *MemoryStore) Flush(context.Context) error { return nil }

// Snapshot returns a copy of the mapping.
func (s *MemoryStore) Snapshot() map[ID]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[ID]bool, len(s.enabled))
	for k, v := range s.enabled {
		out[k] = v
	}
	return out
}

// ResetRequested reports the in-memory reset flag.
func (s *MemoryStore) ResetRequested(context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reset, nil
}

// ClearReset clears the reset flag.
func (s *MemoryStore) ClearReset(context.Context) error {
	s.mu.Lock()
	s.reset = false
	s.mu.Unlock()
	return nil
}

// RequestReset sets the reset flag.
func (s *MemoryStore) RequestReset(context.Context) error {
	s.mu.Lock()
	s.reset = true
	s.mu.Unlock()
	return nil
}
