package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/agent-memory/agent-memory/internal/adapter/event"
	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/adapter/vector"
	"github.com/agent-memory/agent-memory/internal/config"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/metrics"
	"github.com/agent-memory/agent-memory/internal/migrations"
	"github.com/agent-memory/agent-memory/internal/repository"
	"github.com/agent-memory/agent-memory/internal/service/embedding"
)

// dbExposer is satisfied by both storage adapters; migrations needs the
// raw *sql.DB goose drives schema changes against, which sits behind
// the narrower storage.Adapter interface every repository uses.
type dbExposer interface {
	DB() *sql.DB
}

// runMigrations applies every pending goose migration for db's backend
// before any repository touches it, so a fresh data directory or a
// newly added column is never raced by the first request.
func runMigrations(ctx context.Context, db storage.Adapter, logger *slog.Logger) error {
	exposer, ok := db.(dbExposer)
	if !ok {
		return fmt.Errorf("storage adapter %T does not expose a *sql.DB for migrations", db)
	}

	mgr, err := migrations.NewManager(exposer.DB(), migrations.Dialect(db.Dialect()), logger)
	if err != nil {
		return fmt.Errorf("build migration manager: %w", err)
	}
	return mgr.Up(ctx)
}

// wireQueryCache subscribes the query result cache's HandleEvent to
// rt.Events. The permission cache is subscribed separately by
// wirePermissionCache. Unsubscribe functions are kept on rt and run by
// Shutdown in the order they were registered.
func wireQueryCache(ctx context.Context, rt *Runtime) error {
	unsub, err := rt.Events.Subscribe(ctx, rt.QueryCache.HandleEvent)
	if err != nil {
		return fmt.Errorf("subscribe query cache: %w", err)
	}
	rt.unsubscribe = append(rt.unsubscribe, unsub)
	return nil
}

// wirePermissionCache subscribes perm's invalidation handler to rt.Events.
// Split from wireQueryCache because the permission service is built per
// AppContext (it needs a ScopeRepository, which is AppContext-owned),
// not at Runtime-bootstrap time.
func wirePermissionCache(ctx context.Context, rt *Runtime, handle event.Handler) error {
	unsub, err := rt.Events.Subscribe(ctx, handle)
	if err != nil {
		return fmt.Errorf("subscribe permission cache: %w", err)
	}
	rt.unsubscribe = append(rt.unsubscribe, unsub)
	return nil
}

// buildEmbeddingService assembles the embedding worker pool's
// repository-layer dependencies from the shared storage adapter, so the
// job queue can detect stale jobs and record successful embeddings
// without AppContext needing to reach back into Runtime internals.
func buildEmbeddingService(cfg *config.Config, db storage.Adapter, vectors vector.Store, reg *metrics.Registry, logger *slog.Logger) (*embedding.Service, error) {
	deps := repository.DbDeps{Adapter: db}
	entries := map[domain.EntryKind]*repository.EntryRepository{
		domain.KindGuideline: repository.NewEntryRepository(deps, domain.KindGuideline),
		domain.KindKnowledge: repository.NewEntryRepository(deps, domain.KindKnowledge),
		domain.KindTool:      repository.NewEntryRepository(deps, domain.KindTool),
	}

	provider := embedding.NewHTTPProvider(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model)

	svc := embedding.New(embedding.Deps{
		Config: embedding.Config{
			Enabled:    cfg.Embedding.Enabled,
			Provider:   cfg.Embedding.Provider,
			Model:      cfg.Embedding.Model,
			Dimension:  cfg.Embedding.Dimension,
			Timeout:    cfg.Embedding.Timeout,
			MaxRetries: cfg.Embedding.MaxRetries,
			Workers:    cfg.Embedding.Workers,
			QueueDepth: cfg.Embedding.QueueDepth,
		},
		Provider: provider,
		Vectors:  vectors,
		Records:  repository.NewEmbeddingRepository(deps),
		Entries:  entries,
		Logger:   logger,
		Metrics:  reg,
	})
	return svc, nil
}
