package redislock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/agent-memory/agent-memory/internal/adapter/lock"
	"github.com/agent-memory/agent-memory/internal/adapter/lock/redislock"
)

func setupTestLock(t *testing.T) (*redislock.Lock, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redislock.New(client, "am:lock:"), mr
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	l, _ := setupTestLock(t)
	ctx := context.Background()

	h, err := l.Acquire(ctx, "file.go", time.Minute, 0)
	require.NoError(t, err)

	locked, err := l.IsLocked(ctx, "file.go")
	require.NoError(t, err)
	require.True(t, locked)

	require.NoError(t, l.Release(ctx, h))

	locked, err = l.IsLocked(ctx, "file.go")
	require.NoError(t, err)
	require.False(t, locked)
}

func TestRedisLock_Acquire_AlreadyLocked(t *testing.T) {
	l, _ := setupTestLock(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "file.go", time.Minute, 0)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "file.go", time.Minute, 0)
	require.ErrorIs(t, err, lock.ErrAlreadyLocked)
}

func TestRedisLock_Release_WrongTokenIsNotHeld(t *testing.T) {
	l, _ := setupTestLock(t)
	ctx := context.Background()

	h, err := l.Acquire(ctx, "file.go", time.Minute, 0)
	require.NoError(t, err)

	stolen := h
	stolen.Token = "someone-elses-token"
	err = l.Release(ctx, stolen)
	require.ErrorIs(t, err, lock.ErrNotHeld)

	// The real owner's handle must still work after the failed steal.
	require.NoError(t, l.Release(ctx, h))
}

func TestRedisLock_Extend_WrongTokenIsNotHeld(t *testing.T) {
	l, _ := setupTestLock(t)
	ctx := context.Background()

	h, err := l.Acquire(ctx, "file.go", time.Minute, 0)
	require.NoError(t, err)

	stolen := h
	stolen.Token = "someone-elses-token"
	err = l.Extend(ctx, stolen, time.Hour)
	require.ErrorIs(t, err, lock.ErrNotHeld)
}

func TestRedisLock_OwnerToken_FreeKey(t *testing.T) {
	l, _ := setupTestLock(t)
	token, err := l.OwnerToken(context.Background(), "unlocked.go")
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestRedisLock_OwnerToken_ReturnsHolder(t *testing.T) {
	l, _ := setupTestLock(t)
	ctx := context.Background()

	h, err := l.Acquire(ctx, "file.go", time.Minute, 0)
	require.NoError(t, err)

	token, err := l.OwnerToken(ctx, "file.go")
	require.NoError(t, err)
	require.Equal(t, h.Token, token)
}

func TestRedisLock_Health(t *testing.T) {
	l, mr := setupTestLock(t)
	require.NoError(t, l.Health(context.Background()))

	mr.Close()
	require.Error(t, l.Health(context.Background()))
}
