// Package sqlitelock is the embedded-profile LockAdapter backend: a row
// in the file_locks table, acquired with an atomic expire-then-insert
// inside storage.Adapter.Transaction, since sqlite has no native
// SET-NX-with-expiry primitive the way Redis does.
package sqlitelock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/agent-memory/agent-memory/internal/adapter/lock"
	"github.com/agent-memory/agent-memory/internal/adapter/storage"
)

// Lock is the sqlite/postgres-agnostic row-backed lock adapter; it works
// against either storage.Adapter implementation since it only uses the
// shared DBTX surface.
type Lock struct {
	db storage.Adapter
}

// New wraps db.
func New(db storage.Adapter) *Lock {
	return &Lock{db: db}
}

func newToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

// Acquire attempts an atomic expire-then-insert; on contention it retries
// with a fixed backoff until wait elapses.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration, wait time.Duration) (lock.Handle, error) {
	deadline := time.Now().Add(wait)
	token := newToken()

	for {
		h, err := l.tryAcquire(ctx, key, ttl, token)
		if err == nil {
			return h, nil
		}
		if err != lock.ErrAlreadyLocked || wait <= 0 || time.Now().After(deadline) {
			return lock.Handle{}, err
		}
		select {
		case <-ctx.Done():
			return lock.Handle{}, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (l *Lock) tryAcquire(ctx context.Context, key string, ttl time.Duration, token string) (lock.Handle, error) {
	err := l.db.Transaction(ctx, func(ctx context.Context, tx storage.DBTX) error {
		now := time.Now().UTC()

		// Expire-then-insert: delete the row first if it has lapsed, then
		// attempt the insert. The unique index on file_path makes the
		// insert itself the atomic decision point.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM file_locks WHERE file_path = ? AND expires_at < ?`, key, now); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO file_locks (file_path, owner_agent_id, token, acquired_at, expires_at)
			 SELECT ?, ?, ?, ?, ?
			 WHERE NOT EXISTS (SELECT 1 FROM file_locks WHERE file_path = ?)`,
			key, "", token, now, now.Add(ttl), key)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return lock.ErrAlreadyLocked
		}
		return nil
	})
	if err != nil {
		return lock.Handle{}, err
	}
	return lock.Handle{Key: key, Token: token}, nil
}

// Release deletes the row only if the token still matches.
func (l *Lock) Release(ctx context.Context, h lock.Handle) error {
	return l.db.Transaction(ctx, func(ctx context.Context, tx storage.DBTX) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM file_locks WHERE file_path = ? AND token = ?`, h.Key, h.Token)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return lock.ErrNotHeld
		}
		return nil
	})
}

// Extend pushes the expiry out by ttl, provided the token still matches.
func (l *Lock) Extend(ctx context.Context, h lock.Handle, ttl time.Duration) error {
	return l.db.Transaction(ctx, func(ctx context.Context, tx storage.DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE file_locks SET expires_at = ? WHERE file_path = ? AND token = ?`,
			time.Now().Add(ttl), h.Key, h.Token)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return lock.ErrNotHeld
		}
		return nil
	})
}

// IsLocked reports whether an unexpired row exists for key.
func (l *Lock) IsLocked(ctx context.Context, key string) (bool, error) {
	var count int
	row := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM file_locks WHERE file_path = ? AND expires_at >= ?`, key, time.Now())
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// OwnerToken returns the current unexpired holder's token, "" if free.
func (l *Lock) OwnerToken(ctx context.Context, key string) (string, error) {
	var token string
	row := l.db.QueryRowContext(ctx,
		`SELECT token FROM file_locks WHERE file_path = ? AND expires_at >= ?`, key, time.Now())
	if err := row.Scan(&token); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

// Health delegates to the underlying storage adapter.
func (l *Lock) Health(ctx context.Context) error {
	return l.db.Health(ctx)
}
