// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package component

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects hook invocations across components in call order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.events...)
}

// phase returns the ids whose hook for p fired, in order.
func (r *recorder) phase(p Phase) []string {
	var out []string
	suffix := ":" + string(p)
	for _, e := range r.list() {
		if len(e) > len(suffix) && e[len(e)-len(suffix):] == suffix {
			out = append(out, e[:len(e)-len(suffix)])
		}
	}
	return out
}

type fakeComponent struct {
	Base
	rec *recorder

	failOn  map[Phase]error
	panicOn Phase

	onEnable     func(ctx context.Context, f *fakeComponent) error
	integrations []Integration
}

func newFake(id ID, rec *recorder, opts ...BaseOption) *fakeComponent {
	return &fakeComponent{
		Base:   NewBase(id, opts...),
		rec:    rec,
		failOn: make(map[Phase]error),
	}
}

func (f *fakeComponent) hook(p Phase) error {
	if f.rec != nil {
		f.rec.add(string(f.ID()) + ":" + string(p))
	}
	if f.panicOn == p {
		panic("hook exploded")
	}
	return f.failOn[p]
}

func (f *fakeComponent) Enable(ctx context.Context) error {
	if err := f.hook(PhaseEnable); err != nil {
		return err
	}
	if f.onEnable != nil {
		return f.onEnable(ctx, f)
	}
	return nil
}

func (f *fakeComponent) Disable(context.Context) error { return f.hook(PhaseDisable) }
func (f *fakeComponent) Save(context.Context) error    { return f.hook(PhaseSave) }
func (f *fakeComponent) Reset(context.Context) error   { return f.hook(PhaseReset) }

// reloadableFake adds a reload hook.
type reloadableFake struct {
	*fakeComponent
}

func (r reloadableFake) Reload(context.Context) error { return r.hook(PhaseReload) }

// providerFake exposes its integrations for automatic registration.
type providerFake struct {
	*fakeComponent
}

func (p providerFake) Integrations() []Integration { return p.integrations }

type fakeIntegration string

func (f fakeIntegration) IntegrationKey() string { return string(f) }

// recordingIntegrator records registrations and rejects keys in reject.
type recordingIntegrator struct {
	mu           sync.Mutex
	reject       map[string]bool
	registered   []string
	unregistered []string
}

func newRecordingIntegrator(reject ...string) *recordingIntegrator {
	ri := &recordingIntegrator{reject: make(map[string]bool)}
	for _, k := range reject {
		ri.reject[k] = true
	}
	return ri
}

func (ri *recordingIntegrator) RegisterIntegration(owner ID, integ Integration) error {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	if ri.reject[integ.IntegrationKey()] {
		return errors.New("rejected " + integ.IntegrationKey())
	}
	ri.registered = append(ri.registered, string(owner)+"/"+integ.IntegrationKey())
	return nil
}

func (ri *recordingIntegrator) UnregisterIntegration(integ Integration) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	ri.unregistered = append(ri.unregistered, integ.IntegrationKey())
}

func (ri *recordingIntegrator) snapshot() (registered, unregistered []string) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	return append([]string{}, ri.registered...), append([]string{}, ri.unregistered...)
}

func orderIDs(cs []Component) []ID {
	out := make([]ID, len(cs))
	for i, c := range cs {
		out[i] = c.ID()
	}
	return out
}

// failingStore wraps MemoryStore and fails persistence writes.
type failingStore struct {
	*MemoryStore
	loadErr  error
	flushErr error
}

func (s *failingStore) Load(ctx context.Context) error {
	if s.loadErr != nil {
		return s.loadErr
	}
	return s.MemoryStore.Load(ctx)
}

func (s *failingStore) Flush(context.Context) error { return s.flushErr }

func (s *failingStore) MarkAndPersist(_ context.Context, id ID, enabled bool) error {
	s.Mark(id, enabled)
	return s.flushErr
}
