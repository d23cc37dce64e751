// Package storage defines the StorageAdapter abstraction and its two
// backends: an embedded single-file store (sqliteadapter, pure-Go via
// modernc.org/sqlite) and a client/server store (pgadapter, via pgx).
// Repositories depend only on the Adapter interface; adapter choice is
// made once at startup from configuration (storage.New in factory.go,
// called by internal/runtime).
package storage

import (
	"context"
	"database/sql"
)

// DBTX is the minimal surface both a *sql.DB and a *sql.Tx satisfy; every
// repository method takes a DBTX so it can run standalone or inside
// Adapter.Transaction without two code paths.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Adapter is the narrow interface every repository is built against.
// Repositories receive only this interface and DBTX. Both implementations
// also export DB() *sql.DB outside the interface, which internal/runtime
// uses to run migrations.
type Adapter interface {
	DBTX

	// Connect establishes the underlying connection/pool.
	Connect(ctx context.Context) error

	// Disconnect releases the underlying connection/pool.
	Disconnect(ctx context.Context) error

	// Transaction runs fn inside a transactional DBTX, committing on a
	// nil return and rolling back otherwise. Retries only busy/locked/
	// deadlock/serialization failures, per spec's transaction wrapper
	// contract, up to an adapter-specific attempt limit (a fixed 5 for
	// sqlite, database.tx_max_retries for postgres) with exponential
	// backoff.
	Transaction(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error

	// Placeholder returns the positional parameter marker for argument
	// index n (1-based): "?" for sqlite, "$n" for postgres. Repository
	// SQL is written with "?" and rewritten through this at call sites
	// that must support both backends directly (see sqlutil.Rewrite).
	Placeholder(n int) string

	// Dialect names the backend ("sqlite" or "postgres"), used to pick
	// embedded migration sets and a handful of dialect-specific queries
	// (full-text search, upsert syntax).
	Dialect() string
}
