// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package userdata is the user registry component. It records every user
// that joins, assigns each a stable ULID and announces new users on the
// "users" event stream.
package userdata

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/internal/integration"
	"github.com/holomush/componenthost/internal/state"
)

// ID is the component id.
const ID component.ID = "userdata"

// Event stream and types published by the registry.
const (
	Stream      = "users"
	EventJoined = "user.joined"
)

// Error codes.
const (
	CodeUserNotFound = "USER_NOT_FOUND"
	CodeInvalidName  = "INVALID_NAME"
)

const dataFile = "users.yml"

// User is a registered user.
type User struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	FirstSeen time.Time `yaml:"first_seen" json:"first_seen"`
	LastSeen  time.Time `yaml:"last_seen" json:"last_seen"`
}

// JoinedPayload is the JSON payload of EventJoined.
type JoinedPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Publisher publishes events.
type Publisher interface {
	Publish(ctx context.Context, stream, eventType string, payload []byte) (integration.Event, error)
}

type document struct {
	Users []User `yaml:"users"`
}

// Component keeps the user registry.
type Component struct {
	component.Base

	publisher Publisher
	logger    *slog.Logger

	mu     sync.RWMutex
	byName map[string]*User
	byID   map[string]*User
}

// New creates the registry. publisher may be nil, in which case no events
// are published.
func New(publisher Publisher, logger *slog.Logger) *Component {
	if logger == nil {
		logger = slog.Default()
	}
	return &Component{
		Base:      component.NewBase(ID),
		publisher: publisher,
		logger:    logger.With("component", string(ID)),
		byName:    make(map[string]*User),
		byID:      make(map[string]*User),
	}
}

func (c *Component) path() string {
	dir := c.DataDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, dataFile)
}

// Enable loads the registry from the data directory.
func (c *Component) Enable(_ context.Context) error {
	path := c.path()
	if path == "" {
		return nil
	}
	var doc document
	if _, err := state.ReadDocument(path, &doc); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.index(doc.Users)
	c.logger.Info("user registry loaded", "users", len(doc.Users))
	return nil
}

func (c *Component) index(users []User) {
	c.byName = make(map[string]*User, len(users))
	c.byID = make(map[string]*User, len(users))
	for i := range users {
		u := users[i]
		c.byName[strings.ToLower(u.Name)] = &u
		c.byID[u.ID] = &u
	}
}

// Save writes the registry to the data directory.
func (c *Component) Save(ctx context.Context) error {
	path := c.path()
	if path == "" {
		return nil
	}
	return state.WriteDocument(ctx, path, document{Users: c.Users()}, state.WithLogger(c.logger))
}

// Reset forgets every user.
func (c *Component) Reset(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index(nil)
	c.logger.Warn("user registry reset")
	return nil
}

// Join records a visit by name. A first visit creates the user and publishes
// EventJoined; created reports which happened.
func (c *Component) Join(ctx context.Context, name string) (user User, created bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t") {
		return User{}, false, oops.Code(CodeInvalidName).
			With("name", name).
			Errorf("user name must be a single non-empty word")
	}

	now := time.Now().UTC()
	c.mu.Lock()
	if u, ok := c.byName[strings.ToLower(name)]; ok {
		u.LastSeen = now
		user = *u
		c.mu.Unlock()
		return user, false, nil
	}
	u := &User{
		ID:        integration.NewULID().String(),
		Name:      name,
		FirstSeen: now,
		LastSeen:  now,
	}
	c.byName[strings.ToLower(name)] = u
	c.byID[u.ID] = u
	user = *u
	c.mu.Unlock()

	c.logger.Info("user joined", "user", user.Name, "user_id", user.ID)
	if c.publisher != nil {
		payload, err := json.Marshal(JoinedPayload{ID: user.ID, Name: user.Name})
		if err != nil {
			return user, true, oops.Wrapf(err, "encode join event")
		}
		if _, err := c.publisher.Publish(ctx, Stream, EventJoined, payload); err != nil {
			return user, true, err
		}
	}
	return user, true, nil
}

// Lookup finds a user by name, case-insensitively.
func (c *Component) Lookup(name string) (User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.byName[strings.ToLower(name)]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// ByID finds a user by id.
func (c *Component) ByID(id string) (User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.byID[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// Resolve is Lookup returning USER_NOT_FOUND for unknown names.
func (c *Component) Resolve(name string) (User, error) {
	u, ok := c.Lookup(name)
	if !ok {
		return User{}, oops.Code(CodeUserNotFound).
			With("user", name).
			Errorf("no user named %q", name)
	}
	return u, nil
}

// Users returns every user sorted by name.
func (c *Component) Users() []User {
	c.mu.RLock()
	out := make([]User, 0, len(c.byName))
	for _, u := range c.byName {
		out = append(out, *u)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

// Integrations returns the join and whois commands.
func (c *Component) Integrations() []component.Integration {
	return []component.Integration{
		&integration.Command{
			Name:    "join",
			Help:    "Register as a user",
			Usage:   "join [name]",
			Handler: c.handleJoin,
		},
		&integration.Command{
			Name:    "whois",
			Help:    "Show a registered user",
			Usage:   "whois <name>",
			Handler: c.handleWhois,
		},
	}
}

func (c *Component) handleJoin(ctx context.Context, exec *integration.Execution) error {
	name := exec.Caller.Name
	if fields := exec.Fields(); len(fields) > 0 {
		name = fields[0]
	}
	user, created, err := c.Join(ctx, name)
	if err != nil {
		return err
	}
	if created {
		exec.Reply("welcome, %s", user.Name)
	} else {
		exec.Reply("welcome back, %s", user.Name)
	}
	return nil
}

func (c *Component) handleWhois(_ context.Context, exec *integration.Execution) error {
	fields := exec.Fields()
	if len(fields) != 1 {
		return oops.Code(CodeInvalidName).Errorf("usage: whois <name>")
	}
	u, err := c.Resolve(fields[0])
	if err != nil {
		return err
	}
	exec.Reply("%s (%s) first seen %s", u.Name, u.ID, u.FirstSeen.Format(time.RFC3339))
	return nil
}
