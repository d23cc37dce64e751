// Package sqliteadapter implements storage.Adapter over an embedded,
// single-file sqlite database using the pure-Go modernc.org/sqlite
// driver. Grounded on the teacher's internal/storage/sqlite adapter:
// WAL journaling, foreign keys on, bounded pool, restrictive file
// permissions, path validation rejecting traversal and system paths.
package sqliteadapter

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/metrics"
)

var forbiddenPrefixes = []string{"/etc", "/sys", "/proc", "/dev"}

// Adapter is the embedded sqlite implementation of storage.Adapter.
type Adapter struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	m    *metrics.Registry
}

// New validates path and constructs an unconnected Adapter. Call Connect
// to open the pool.
func New(path string, m *metrics.Registry) (*Adapter, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	return &Adapter{path: path, m: m}, nil
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("sqlite path must not be empty")
	}
	clean := filepath.Clean(path)
	if strings.Contains(path, "..") {
		return fmt.Errorf("sqlite path must not contain '..': %s", path)
	}
	for _, prefix := range forbiddenPrefixes {
		if strings.HasPrefix(clean, prefix) {
			return fmt.Errorf("sqlite path may not live under %s", prefix)
		}
	}
	return nil
}

// Connect opens the database file and pool, creating the parent directory
// with 0700 permissions if needed.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil {
		return nil
	}

	dir := filepath.Dir(a.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)", a.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping sqlite: %w", err)
	}

	if info, statErr := os.Stat(a.path); statErr == nil {
		_ = os.Chmod(a.path, 0o600&info.Mode())
	}

	a.db = db
	return nil
}

// Disconnect closes the pool idempotently.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *Adapter) conn() *sql.DB {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.db
}

func (a *Adapter) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := a.conn().ExecContext(ctx, query, args...)
	a.record("exec", start, err)
	return res, wrapNotFound(err)
}

func (a *Adapter) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := a.conn().QueryContext(ctx, query, args...)
	a.record("query", start, err)
	return rows, wrapNotFound(err)
}

func (a *Adapter) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := a.conn().QueryRowContext(ctx, query, args...)
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
	a.m.StorageOperations.WithLabelValues("sqlite", op, status).Inc()
	a.m.StorageDuration.WithLabelValues("sqlite", op).Observe(time.Since(start).Seconds())
}

func wrapNotFound(err error) error {
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	return err
}

// Transaction runs fn inside a sqlite transaction, retrying on
// SQLITE_BUSY up to 5 attempts with exponential backoff.
func (a *Adapter) Transaction(ctx context.Context, fn func(ctx context.Context, tx storage.DBTX) error) error {
	const maxAttempts = 5
	backoff := 25 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := a.conn().BeginTx(ctx, nil)
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
	return fmt.Errorf("transaction failed after %d attempts: %w", maxAttempts, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}

// Health pings the pool.
func (a *Adapter) Health(ctx context.Context) error {
	db := a.conn()
	if db == nil {
		return fmt.Errorf("sqlite adapter not connected")
	}
	return db.PingContext(ctx)
}

// Placeholder returns sqlite's "?" positional marker regardless of n.
func (a *Adapter) Placeholder(n int) string { return "?" }

// Dialect reports "sqlite".
func (a *Adapter) Dialect() string { return "sqlite" }

// DB exposes the underlying *sql.DB only to the migrations package, which
// must hand it to goose; no repository may import this accessor.
func (a *Adapter) DB() *sql.DB { return a.conn() }
