// Package pgadapter implements storage.Adapter over a pooled PostgreSQL
// connection via jackc/pgx, exposed through database/sql's stdlib
// compatibility layer so the rest of the tree only ever depends on
// database/sql types (storage.DBTX).
package pgadapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/metrics"
)

// Config configures the pool.
type Config struct {
	DSN             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
	TxMaxRetries    int
	TxBackoff       time.Duration
}

// Adapter is the postgres implementation of storage.Adapter.
type Adapter struct {
	cfg Config
	db  *sql.DB
	m   *metrics.Registry
}

// New constructs an unconnected Adapter.
func New(cfg Config, m *metrics.Registry) *Adapter {
	if cfg.TxMaxRetries <= 0 {
		cfg.TxMaxRetries = 5
	}
	if cfg.TxBackoff <= 0 {
		cfg.TxBackoff = 25 * time.Millisecond
	}
	return &Adapter{cfg: cfg, m: m}
}

// Connect opens the pool.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.db != nil {
		return nil
	}
	connCtx, cancel := context.WithTimeout(ctx, a.cfg.ConnectTimeout)
	defer cancel()

	db, err := sql.Open("pgx", a.cfg.DSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(a.cfg.MaxConns)
	db.SetMaxIdleConns(a.cfg.MinConns)
	db.SetConnMaxLifetime(a.cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(a.cfg.MaxConnIdleTime)

	if err := db.PingContext(connCtx); err != nil {
		db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	a.db = db
	return nil
}

// Disconnect closes the pool.
func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *Adapter) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := a.db.ExecContext(ctx, query, args...)
	a.record("exec", start, err)
	return res, wrapNotFound(err)
}

func (a *Adapter) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := a.db.QueryContext(ctx, query, args...)
	a.record("query", start, err)
	return rows, wrapNotFound(err)
}

func (a *Adapter) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := a.db.QueryRowContext(ctx, query, args...)
	a.record("query_row", start, nil)
	return row
}

func (a *Adapter) record(op string, start time.Time, err error) {
	if a.m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	a.m.StorageOperations.WithLabelValues("postgres", op, status).Inc()
	a.m.StorageDuration.WithLabelValues("postgres", op).Observe(time.Since(start).Seconds())
}

func wrapNotFound(err error) error {
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	return err
}

// Transaction runs fn inside a postgres transaction, retrying only on
// serialization_failure (40001) and deadlock_detected (40P01).
func (a *Adapter) Transaction(ctx context.Context, fn func(ctx context.Context, tx storage.DBTX) error) error {
	backoff := a.cfg.TxBackoff

	var lastErr error
	for attempt := 0; attempt < a.cfg.TxMaxRetries; attempt++ {
		tx, err := a.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if err := fn(ctx, tx); err != nil {
			_ = tx.Rollback()
			if isRetryable(err) {
				lastErr = err
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", a.cfg.TxMaxRetries, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "40001") || strings.Contains(msg, "40p01") ||
		strings.Contains(msg, "deadlock") || strings.Contains(msg, "serialize")
}

// Health pings the pool.
func (a *Adapter) Health(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("postgres adapter not connected")
	}
	return a.db.PingContext(ctx)
}

// Placeholder returns postgres's "$n" positional marker.
func (a *Adapter) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// Dialect reports "postgres".
func (a *Adapter) Dialect() string { return "postgres" }

// DB exposes the underlying *sql.DB only to the migrations package.
func (a *Adapter) DB() *sql.DB { return a.db }
