// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package economy is the currency component. It keeps one balance per
// registered user and requires the userdata component.
package economy

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/internal/components/userdata"
	"github.com/holomush/componenthost/internal/integration"
	"github.com/holomush/componenthost/internal/state"
)

// ID is the component id.
const ID component.ID = "economy"

// Error codes.
const (
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
)

// Defaults.
const (
	DefaultStartingBalance int64 = 100
	DefaultTopSize               = 10
)

const dataFile = "balances.yml"

// Entry is one line of the balance leaderboard.
type Entry struct {
	Name    string
	Balance int64
}

type document struct {
	Balances map[string]int64 `yaml:"balances"`
}

// Option configures the component.
type Option func(*Component)

// WithStartingBalance sets the balance granted to every new user.
func WithStartingBalance(n int64) Option {
	return func(c *Component) { c.starting = n }
}

// WithCurrency sets the display name of the currency.
func WithCurrency(name string) Option {
	return func(c *Component) { c.currency = name }
}

// Component keeps balances keyed by user id.
type Component struct {
	component.Base

	logger   *slog.Logger
	starting int64
	currency string

	users *userdata.Component

	mu       sync.RWMutex
	balances map[string]int64
}

// New creates the economy component.
func New(logger *slog.Logger, opts ...Option) *Component {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Component{
		Base:     component.NewBase(ID, component.WithHardDependencies(userdata.ID)),
		logger:   logger.With("component", string(ID)),
		starting: DefaultStartingBalance,
		currency: "coins",
		balances: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Component) path() string {
	dir := c.DataDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, dataFile)
}

// Enable resolves the user registry and loads balances.
func (c *Component) Enable(_ context.Context) error {
	users, err := component.DependencyAs[*userdata.Component](c, userdata.ID)
	if err != nil {
		return err
	}
	c.users = users
	return c.load()
}

// Reload re-reads balances from disk, dropping unsaved changes.
func (c *Component) Reload(_ context.Context) error {
	return c.load()
}

func (c *Component) load() error {
	path := c.path()
	if path == "" {
		return nil
	}
	var doc document
	if _, err := state.ReadDocument(path, &doc); err != nil {
		return err
	}
	if doc.Balances == nil {
		doc.Balances = make(map[string]int64)
	}

	c.mu.Lock()
	c.balances = doc.Balances
	c.mu.Unlock()
	c.logger.Info("balances loaded", "accounts", len(doc.Balances))
	return nil
}

// Save writes balances to the data directory.
func (c *Component) Save(ctx context.Context) error {
	path := c.path()
	if path == "" {
		return nil
	}
	c.mu.RLock()
	doc := document{Balances: make(map[string]int64, len(c.balances))}
	for k, v := range c.balances {
		doc.Balances[k] = v
	}
	c.mu.RUnlock()
	return state.WriteDocument(ctx, path, doc, state.WithLogger(c.logger))
}

// Reset clears every balance.
func (c *Component) Reset(_ context.Context) error {
	c.mu.Lock()
	c.balances = make(map[string]int64)
	c.mu.Unlock()
	c.logger.Warn("balances reset")
	return nil
}

// Open grants the starting balance to userID unless it already has an account.
func (c *Component) Open(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.balances[userID]; ok {
		return false
	}
	c.balances[userID] = c.starting
	return true
}

// Balance returns the balance of the named user. Users without an account
// have a zero balance.
func (c *Component) Balance(name string) (int64, error) {
	u, err := c.users.Resolve(name)
	if err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balances[u.ID], nil
}

// Pay moves amount from one user to another.
func (c *Component) Pay(from, to string, amount int64) error {
	if amount <= 0 {
		return oops.Code(CodeInvalidAmount).With("amount", amount).Errorf("amount must be positive")
	}
	payer, err := c.users.Resolve(from)
	if err != nil {
		return err
	}
	payee, err := c.users.Resolve(to)
	if err != nil {
		return err
	}
	if payer.ID == payee.ID {
		return oops.Code(CodeInvalidAmount).With("user", from).Errorf("cannot pay yourself")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.balances[payer.ID] < amount {
		return oops.Code(CodeInsufficientFunds).
			With("user", payer.Name).
			With("balance", c.balances[payer.ID]).
			With("amount", amount).
			Errorf("%s has only %d %s", payer.Name, c.balances[payer.ID], c.currency)
	}
	c.balances[payer.ID] -= amount
	c.balances[payee.ID] += amount
	c.logger.Info("payment", "from", payer.Name, "to", payee.Name, "amount", amount)
	return nil
}

// Top returns the n largest balances, ties broken by name.
func (c *Component) Top(n int) []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.balances))
	for id, bal := range c.balances {
		name := "?"
		if u, ok := c.users.ByID(id); ok {
			name = u.Name
		}
		out = append(out, Entry{Name: name, Balance: bal})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Integrations returns the balance commands and the subscription that opens
// an account for every new user.
func (c *Component) Integrations() []component.Integration {
	return []component.Integration{
		&integration.Command{Name: "balance", Help: "Show a balance", Usage: "balance [name]", Handler: c.handleBalance},
		&integration.Command{Name: "balancetop", Help: "Show the richest users", Usage: "balancetop [count]", Handler: c.handleTop},
		&integration.Command{Name: "pay", Help: "Pay another user", Usage: "pay <name> <amount>", Handler: c.handlePay},
		&integration.Subscription{Stream: userdata.Stream, Types: []string{userdata.EventJoined}, Handler: c.onJoined},
	}
}

func (c *Component) onJoined(_ context.Context, event integration.Event) {
	var p userdata.JoinedPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		c.logger.Warn("malformed join event", "event_id", event.ID.String(), "error", err)
		return
	}
	if c.Open(p.ID) {
		c.logger.Debug("account opened", "user", p.Name, "balance", c.starting)
	}
}

func (c *Component) handleBalance(_ context.Context, exec *integration.Execution) error {
	name := exec.Caller.Name
	if fields := exec.Fields(); len(fields) > 0 {
		name = fields[0]
	}
	bal, err := c.Balance(name)
	if err != nil {
		return err
	}
	exec.Reply("%s: %d %s", name, bal, c.currency)
	return nil
}

func (c *Component) handleTop(_ context.Context, exec *integration.Execution) error {
	n := DefaultTopSize
	if fields := exec.Fields(); len(fields) > 0 {
		v, err := strconv.Atoi(fields[0])
		if err != nil || v <= 0 {
			return oops.Code(CodeInvalidAmount).With("count", fields[0]).Errorf("count must be a positive number")
		}
		n = v
	}
	top := c.Top(n)
	if len(top) == 0 {
		exec.Reply("nobody has any %s", c.currency)
		return nil
	}
	exec.Reply("--- top %s ---", c.currency)
	for i, e := range top {
		exec.Reply("%d. %s: %d", i+1, e.Name, e.Balance)
	}
	return nil
}

func (c *Component) handlePay(_ context.Context, exec *integration.Execution) error {
	fields := exec.Fields()
	if len(fields) != 2 {
		return oops.Code(CodeInvalidAmount).Errorf("usage: pay <name> <amount>")
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return oops.Code(CodeInvalidAmount).With("amount", fields[1]).Errorf("amount must be a whole number")
	}
	if err := c.Pay(exec.Caller.Name, fields[0], amount); err != nil {
		return err
	}
	exec.Reply("paid %d %s to %s", amount, c.currency, fields[0])
	return nil
}
