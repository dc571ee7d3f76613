// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package integration is the command and event subsystem components attach
// to while they are enabled.
package integration

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Caller identifies who runs a command.
type Caller struct {
	Name     string
	Operator bool
}

// Execution is the context a command handler runs with.
type Execution struct {
	Command string
	Args    string
	Caller  Caller
	Output  io.Writer
}

// Fields splits the arguments on whitespace.
func (e *Execution) Fields() []string {
	return strings.Fields(e.Args)
}

// Reply writes one line of output.
func (e *Execution) Reply(format string, args ...any) {
	if e.Output == nil {
		return
	}
	//nolint:errcheck // output is best-effort, like a terminal
	fmt.Fprintf(e.Output, format+"\n", args...)
}

// Handler runs a command.
type Handler func(ctx context.Context, exec *Execution) error

// Command is a named command integration.
type Command struct {
	Name  string
	Help  string
	Usage string
	// Operator restricts the command to operator callers.
	Operator bool
	Handler  Handler
}

// IntegrationKey implements component.Integration.
func (c *Command) IntegrationKey() string { return "command:" + c.Name }

// Event is a message published on a stream.
type Event struct {
	ID        ulid.ULID
	Stream    string
	Type      string
	Payload   []byte
	Timestamp time.Time
}

// EventHandler receives events. Handlers run synchronously on the publisher's
// goroutine and must not block.
type EventHandler func(ctx context.Context, event Event)

// Subscription receives events published on Stream. An empty Types list
// matches every event type.
type Subscription struct {
	Stream  string
	Types   []string
	Handler EventHandler
}

// IntegrationKey implements component.Integration.
func (s *Subscription) IntegrationKey() string { return "subscription:" + s.Stream }

func (s *Subscription) matches(eventType string) bool {
	if len(s.Types) == 0 {
		return true
	}
	for _, t := range s.Types {
		if t == eventType {
			return true
		}
	}
	return false
}

// CommandInfo describes a registered command.
type CommandInfo struct {
	Name     string `json:"name"`
	Help     string `json:"help,omitempty"`
	Usage    string `json:"usage,omitempty"`
	Operator bool   `json:"operator,omitempty"`
	Owner    string `json:"owner"`
}
