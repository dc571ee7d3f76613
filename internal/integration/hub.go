// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/pkg/errutil"
)

type ownedCommand struct {
	cmd   *Command
	owner component.ID
}

type ownedSubscription struct {
	sub   *Subscription
	owner component.ID
}

// Hub routes commands and events to the integrations components registered.
// It implements component.Integrator.
type Hub struct {
	mu       sync.RWMutex
	commands map[string]ownedCommand
	subs     map[string][]ownedSubscription
	logger   *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		commands: make(map[string]ownedCommand),
		subs:     make(map[string][]ownedSubscription),
		logger:   logger,
	}
}

var _ component.Integrator = (*Hub)(nil)

// RegisterIntegration accepts *Command and *Subscription integrations.
func (h *Hub) RegisterIntegration(owner component.ID, integ component.Integration) error {
	switch v := integ.(type) {
	case *Command:
		return h.addCommand(owner, v)
	case *Subscription:
		return h.addSubscription(owner, v)
	default:
		return oops.Code(CodeUnsupportedIntegration).
			With("integration", integ.IntegrationKey()).
			Errorf("unsupported integration type %T", integ)
	}
}

func (h *Hub) addCommand(owner component.ID, cmd *Command) error {
	name := strings.ToLower(cmd.Name)
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return ErrInvalidIntegration(cmd.IntegrationKey(), "command name must be a single word")
	}
	if cmd.Handler == nil {
		return ErrInvalidIntegration(cmd.IntegrationKey(), "command has no handler")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.commands[name]; ok {
		return ErrCommandConflict(name, owner, existing.owner)
	}
	h.commands[name] = ownedCommand{cmd: cmd, owner: owner}
	h.logger.Debug("command registered", "command", name, "component", string(owner))
	return nil
}

func (h *Hub) addSubscription(owner component.ID, sub *Subscription) error {
	if sub.Stream == "" {
		return ErrInvalidIntegration(sub.IntegrationKey(), "subscription has no stream")
	}
	if sub.Handler == nil {
		return ErrInvalidIntegration(sub.IntegrationKey(), "subscription has no handler")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub.Stream] = append(h.subs[sub.Stream], ownedSubscription{sub: sub, owner: owner})
	return nil
}

// UnregisterIntegration removes an integration previously registered. Unknown
// integrations are ignored.
func (h *Hub) UnregisterIntegration(integ component.Integration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch v := integ.(type) {
	case *Command:
		name := strings.ToLower(v.Name)
		if existing, ok := h.commands[name]; ok && existing.cmd == v {
			delete(h.commands, name)
		}
	case *Subscription:
		subs := h.subs[v.Stream]
		for i, s := range subs {
			if s.sub == v {
				h.subs[v.Stream] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(h.subs[v.Stream]) == 0 {
			delete(h.subs, v.Stream)
		}
	}
}

// Dispatch parses input and runs the matching command, writing its output to
// out. Handler panics are recovered and returned as COMMAND_FAILED.
func (h *Hub) Dispatch(ctx context.Context, input string, out io.Writer, caller Caller) (err error) {
	parsed, err := Parse(input)
	if err != nil {
		return err
	}

	h.mu.RLock()
	entry, ok := h.commands[parsed.Name]
	h.mu.RUnlock()
	if !ok {
		recordCommand(parsed.Name, "", StatusNotFound, 0)
		return ErrCommandNotFound(parsed.Name)
	}
	owner := string(entry.owner)
	if entry.cmd.Operator && !caller.Operator {
		recordCommand(parsed.Name, owner, StatusPermissionDenied, 0)
		return ErrPermissionDenied(parsed.Name, caller.Name)
	}

	exec := &Execution{
		Command: parsed.Name,
		Args:    parsed.Args,
		Caller:  caller,
		Output:  out,
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = oops.Code(CodeCommandFailed).
				With("command", parsed.Name).
				With("component", owner).
				Errorf("command panicked: %s", fmt.Sprint(r))
		}
		status := StatusSuccess
		if err != nil {
			status = StatusError
			errutil.LogWarn(h.logger, "command failed", err, "command", parsed.Name, "component", owner)
		}
		recordCommand(parsed.Name, owner, status, time.Since(start))
	}()

	if err := entry.cmd.Handler(ctx, exec); err != nil {
		return oops.With("command", parsed.Name).With("component", owner).Wrap(err)
	}
	return nil
}

// Commands lists the registered commands sorted by name.
func (h *Hub) Commands() []CommandInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]CommandInfo, 0, len(h.commands))
	for name, e := range h.commands {
		out = append(out, CommandInfo{
			Name:     name,
			Help:     e.cmd.Help,
			Usage:    e.cmd.Usage,
			Operator: e.cmd.Operator,
			Owner:    string(e.owner),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Publish stamps an event with a new ULID and delivers it synchronously to
// every matching subscription. A panicking handler is logged and skipped.
func (h *Hub) Publish(ctx context.Context, stream, eventType string, payload []byte) (Event, error) {
	if stream == "" || eventType == "" {
		return Event{}, oops.Code(CodeInvalidEvent).
			With("stream", stream).
			With("type", eventType).
			Errorf("event needs a stream and a type")
	}

	event := Event{
		ID:        NewULID(),
		Stream:    stream,
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	h.mu.RLock()
	targets := append([]ownedSubscription(nil), h.subs[stream]...)
	h.mu.RUnlock()

	EventsPublished.WithLabelValues(stream, eventType).Inc()
	for _, t := range targets {
		if t.sub.matches(eventType) {
			h.deliver(ctx, t, event)
		}
	}
	return event, nil
}

func (h *Hub) deliver(ctx context.Context, t ownedSubscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("event handler panicked",
				"component", string(t.owner),
				"stream", event.Stream,
				"event_id", event.ID.String(),
				"event_type", event.Type,
				"panic", fmt.Sprint(r))
		}
	}()
	t.sub.Handler(ctx, event)
}
