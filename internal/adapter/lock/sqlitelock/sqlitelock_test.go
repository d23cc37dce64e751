package sqlitelock_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/agent-memory/agent-memory/internal/adapter/lock"
	"github.com/agent-memory/agent-memory/internal/adapter/lock/sqlitelock"
	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/adapter/storage/sqliteadapter"
	"github.com/agent-memory/agent-memory/internal/metrics"
	"github.com/agent-memory/agent-memory/internal/migrations"
)

func newTestLock(t *testing.T) *sqlitelock.Lock {
	t.Helper()
	ctx := context.Background()

	m := metrics.New(prometheus.NewRegistry())
	adapter, err := sqliteadapter.New(t.TempDir()+"/test.db", m)
	require.NoError(t, err)
	require.NoError(t, adapter.Connect(ctx))
	t.Cleanup(func() { _ = adapter.Disconnect(ctx) })

	var db storage.Adapter = adapter
	mgr, err := migrations.NewManager(adapter.DB(), migrations.DialectSQLite, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.NoError(t, mgr.Up(ctx))

	return sqlitelock.New(db)
}

func TestSqliteLock_AcquireRelease(t *testing.T) {
	l := newTestLock(t)
	ctx := context.Background()

	h, err := l.Acquire(ctx, "/repo/file.go", time.Minute, 0)
	require.NoError(t, err)
	require.Equal(t, "/repo/file.go", h.Key)

	locked, err := l.IsLocked(ctx, "/repo/file.go")
	require.NoError(t, err)
	require.True(t, locked)

	require.NoError(t, l.Release(ctx, h))

	locked, err = l.IsLocked(ctx, "/repo/file.go")
	require.NoError(t, err)
	require.False(t, locked)
}

func TestSqliteLock_Acquire_AlreadyLocked(t *testing.T) {
	l := newTestLock(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "/repo/file.go", time.Minute, 0)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "/repo/file.go", time.Minute, 0)
	require.ErrorIs(t, err, lock.ErrAlreadyLocked)
}

func TestSqliteLock_Acquire_ExpiredLockIsReplaced(t *testing.T) {
	l := newTestLock(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "/repo/file.go", time.Millisecond, 0)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	h2, err := l.Acquire(ctx, "/repo/file.go", time.Minute, 0)
	require.NoError(t, err, "an expired lock must be reclaimable by a new owner")
	require.Equal(t, "/repo/file.go", h2.Key)
}

func TestSqliteLock_Release_WrongTokenIsNotHeld(t *testing.T) {
	l := newTestLock(t)
	ctx := context.Background()

	h, err := l.Acquire(ctx, "/repo/file.go", time.Minute, 0)
	require.NoError(t, err)

	stale := h
	stale.Token = "not-the-real-token"
	err = l.Release(ctx, stale)
	require.ErrorIs(t, err, lock.ErrNotHeld)
}

func TestSqliteLock_Extend(t *testing.T) {
	l := newTestLock(t)
	ctx := context.Background()

	h, err := l.Acquire(ctx, "/repo/file.go", time.Millisecond, 0)
	require.NoError(t, err)

	require.NoError(t, l.Extend(ctx, h, time.Minute))

	time.Sleep(20 * time.Millisecond)
	locked, err := l.IsLocked(ctx, "/repo/file.go")
	require.NoError(t, err)
	require.True(t, locked, "Extend should have pushed expires_at into the future")
}

func TestSqliteLock_OwnerToken_FreeKey(t *testing.T) {
	l := newTestLock(t)
	token, err := l.OwnerToken(context.Background(), "/repo/unlocked.go")
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestSqliteLock_Acquire_WaitsForRelease(t *testing.T) {
	l := newTestLock(t)
	ctx := context.Background()

	h, err := l.Acquire(ctx, "/repo/file.go", time.Minute, 0)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = l.Release(context.Background(), h)
	}()

	h2, err := l.Acquire(ctx, "/repo/file.go", time.Minute, 500*time.Millisecond)
	require.NoError(t, err, "Acquire should retry until the holder releases within the wait budget")
	require.NotEqual(t, h.Token, h2.Token)
}
