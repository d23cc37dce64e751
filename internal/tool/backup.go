package tool

import (
	"context"

	"github.com/agent-memory/agent-memory/internal/backup"
	"github.com/agent-memory/agent-memory/internal/runtime"
)

func registerBackupHandlers(reg *Registry) {
	reg.Register("backup", "create", "create a new on-disk snapshot of the store", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		mgr := backup.New(ac.Runtime.Config, ac.Runtime.Storage)
		return mgr.Create(ctx)
	})

	reg.Register("backup", "list", "list every on-disk snapshot", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		mgr := backup.New(ac.Runtime.Config, ac.Runtime.Storage)
		return mgr.List()
	})

	reg.Register("backup", "cleanup", "prune snapshots beyond the configured retention", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		mgr := backup.New(ac.Runtime.Config, ac.Runtime.Storage)
		removed, err := mgr.Cleanup()
		if err != nil {
			return nil, err
		}
		return map[string]any{"removed": removed}, nil
	})
}
