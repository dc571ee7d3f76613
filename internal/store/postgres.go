// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store provides the PostgreSQL backend for component state and the
// schema migrations it needs.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/componenthost/internal/component"
)

// Error codes for the PostgreSQL backend.
const (
	CodeConnectFailed = "STATE_CONNECT_FAILED"
	CodeSchemaMissing = "STATE_SCHEMA_MISSING"
	CodeLoadFailed    = "STATE_LOAD_FAILED"
)

const resetFlagName = "reset"

// poolIface is the subset of *pgxpool.Pool the store uses, so tests can
// substitute pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStateStore implements component.EnabledStore and
// component.ResetFlag on top of the component_state and runtime_flags tables.
type PostgresStateStore struct {
	pool   poolIface
	logger *slog.Logger

	mu      sync.RWMutex
	enabled map[component.ID]bool
}

// NewPostgresStateStore wraps an existing pool.
func NewPostgresStateStore(pool poolIface, logger *slog.Logger) *PostgresStateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStateStore{
		pool:    pool,
		logger:  logger,
		enabled: make(map[component.ID]bool),
	}
}

// Connect opens a pool for dsn and waits for the database to answer a ping,
// retrying with exponential backoff for up to timeout.
func Connect(ctx context.Context, dsn string, timeout time.Duration, logger *slog.Logger) (*PostgresStateStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code(CodeConnectFailed).With("operation", "create pool").Wrap(err)
	}

	backoff := retry.WithMaxDuration(timeout, retry.NewExponential(100*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if perr := pool.Ping(ctx); perr != nil {
			return retry.RetryableError(perr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code(CodeConnectFailed).With("operation", "ping database").Wrap(err)
	}
	return NewPostgresStateStore(pool, logger), nil
}

// Close releases the pool.
func (s *PostgresStateStore) Close() {
	s.pool.Close()
}

// Load reads every stored flag. A missing table is reported with a hint to
// run the migrations.
func (s *PostgresStateStore) Load(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT component_id, enabled FROM component_state`)
	if err != nil {
		return classify(err, "load component state")
	}
	defer rows.Close()

	enabled := make(map[component.ID]bool)
	for rows.Next() {
		var id string
		var v bool
		if err := rows.Scan(&id, &v); err != nil {
			return oops.Code(CodeLoadFailed).With("operation", "scan component state row").Wrap(err)
		}
		enabled[component.ID(id)] = v
	}
	if err := rows.Err(); err != nil {
		return classify(err, "iterate component state")
	}

	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()

	s.logger.Debug("loaded component state", "backend", "postgres", "entries", len(enabled))
	return nil
}

// IsEnabled returns the stored flag or def when absent.
func (s *PostgresStateStore) IsEnabled(id component.ID, def bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.enabled[id]
	if !ok {
		return def
	}
	return v
}

// Mark updates the in-memory mapping.
func (s *PostgresStateStore) Mark(id component.ID, enabled bool) {
	s.mu.Lock()
	s.enabled[id] = enabled
	s.mu.Unlock()
}

const upsertState = `INSERT INTO component_state (component_id, enabled, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (component_id) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()`

// MarkAndPersist updates the mapping and upserts the single row.
func (s *PostgresStateStore) MarkAndPersist(ctx context.Context, id component.ID, enabled bool) error {
	s.Mark(id, enabled)
	if _, err := s.pool.Exec(ctx, upsertState, string(id), enabled); err != nil {
		return component.ErrPersistenceWriteFailed("component_state", err)
	}
	return nil
}

// Flush upserts the whole mapping in one transaction, ids in sorted order.
func (s *PostgresStateStore) Flush(ctx context.Context) (err error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.enabled))
	values := make(map[string]bool, len(s.enabled))
	for id, v := range s.enabled {
		ids = append(ids, string(id))
		values[string(id)] = v
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return component.ErrPersistenceWriteFailed("component_state", err)
	}
	defer func() {
		if err != nil {
			//nolint:errcheck // rollback after a failed write; the write error is returned
			tx.Rollback(ctx)
		}
	}()

	for _, id := range ids {
		if _, err = tx.Exec(ctx, upsertState, id, values[id]); err != nil {
			return component.ErrPersistenceWriteFailed("component_state", err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return component.ErrPersistenceWriteFailed("component_state", err)
	}
	return nil
}

// ResetRequested reports the reset flag. A missing row means no reset.
func (s *PostgresStateStore) ResetRequested(ctx context.Context) (bool, error) {
	var v bool
	err := s.pool.QueryRow(ctx, `SELECT value FROM runtime_flags WHERE name = $1`, resetFlagName).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classify(err, "read reset flag")
	}
	return v, nil
}

// ClearReset persists reset = false.
func (s *PostgresStateStore) ClearReset(ctx context.Context) error {
	return s.setFlag(ctx, resetFlagName, false)
}

// RequestReset persists reset = true.
func (s *PostgresStateStore) RequestReset(ctx context.Context) error {
	return s.setFlag(ctx, resetFlagName, true)
}

func (s *PostgresStateStore) setFlag(ctx context.Context, name string, value bool) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO runtime_flags (name, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, name, value)
	if err != nil {
		return component.ErrPersistenceWriteFailed("runtime_flags", err)
	}
	return nil
}

// classify maps read errors to codes, pointing at the migrations when the
// schema has not been created.
func classify(err error, operation string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return oops.Code(CodeSchemaMissing).
			With("operation", operation).
			Hint("run 'componenthost migrate up' to create the state tables").
			Wrap(err)
	}
	return oops.Code(CodeLoadFailed).With("operation", operation).Wrap(err)
}
