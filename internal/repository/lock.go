package repository

import (
	"context"
	"time"

	"github.com/agent-memory/agent-memory/internal/adapter/lock"
)

// LockRepository is the entry point the file_lock tool calls into. It
// adds nothing over the lock adapter beyond giving callers outside
// internal/adapter a stable, backend-agnostic import path, consistent
// with how the other repositories wrap their adapters.
type LockRepository struct {
	adapter lock.Adapter
}

// NewLockRepository constructs a LockRepository around a lock adapter.
func NewLockRepository(adapter lock.Adapter) *LockRepository {
	return &LockRepository{adapter: adapter}
}

// Acquire blocks up to wait for key, returning a handle on success.
func (r *LockRepository) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (lock.Handle, error) {
	return r.adapter.Acquire(ctx, key, ttl, wait)
}

// Release gives up a held lock. Returns lock.ErrNotHeld if h's token no
// longer matches the current holder.
func (r *LockRepository) Release(ctx context.Context, h lock.Handle) error {
	return r.adapter.Release(ctx, h)
}

// Extend pushes out a held lock's expiry.
func (r *LockRepository) Extend(ctx context.Context, h lock.Handle, ttl time.Duration) error {
	return r.adapter.Extend(ctx, h, ttl)
}

// IsLocked reports whether key is currently held by anyone.
func (r *LockRepository) IsLocked(ctx context.Context, key string) (bool, error) {
	return r.adapter.IsLocked(ctx, key)
}

// OwnerToken returns the token currently holding key, if any.
func (r *LockRepository) OwnerToken(ctx context.Context, key string) (string, error) {
	return r.adapter.OwnerToken(ctx, key)
}
