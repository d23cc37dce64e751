package storage

import (
	"fmt"

	"github.com/agent-memory/agent-memory/internal/adapter/storage/pgadapter"
	"github.com/agent-memory/agent-memory/internal/adapter/storage/sqliteadapter"
	"github.com/agent-memory/agent-memory/internal/config"
	"github.com/agent-memory/agent-memory/internal/metrics"
)

// New selects and constructs the configured backend. It does not connect;
// callers invoke Adapter.Connect during runtime startup.
func New(cfg *config.Config, m *metrics.Registry) (Adapter, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendSQLite:
		return sqliteadapter.New(cfg.Storage.FilesystemPath, m)
	case config.StorageBackendPostgres:
		return pgadapter.New(pgadapter.Config{
			DSN:             cfg.GetDatabaseURL(),
			MaxConns:        cfg.Database.MaxConnections,
			MinConns:        cfg.Database.MinConnections,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			ConnectTimeout:  cfg.Database.ConnectTimeout,
			TxMaxRetries:    cfg.Database.TxMaxRetries,
			TxBackoff:       cfg.Database.TxBackoff,
		}, m), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}
