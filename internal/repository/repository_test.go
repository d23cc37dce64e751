package repository_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/adapter/storage/sqliteadapter"
	"github.com/agent-memory/agent-memory/internal/metrics"
	"github.com/agent-memory/agent-memory/internal/migrations"
)

// newTestAdapter opens a fresh sqlite file under t.TempDir() and applies
// the real migration set, giving every repository test in this package a
// database with production schema rather than a hand-rolled subset.
func newTestAdapter(t *testing.T) storage.Adapter {
	t.Helper()
	ctx := context.Background()

	m := metrics.New(prometheus.NewRegistry())
	adapter, err := sqliteadapter.New(t.TempDir()+"/test.db", m)
	require.NoError(t, err)
	require.NoError(t, adapter.Connect(ctx))
	t.Cleanup(func() { _ = adapter.Disconnect(ctx) })

	logger := slog.New(slog.DiscardHandler)
	mgr, err := migrations.NewManager(adapter.DB(), migrations.DialectSQLite, logger)
	require.NoError(t, err)
	require.NoError(t, mgr.Up(ctx))

	return adapter
}
