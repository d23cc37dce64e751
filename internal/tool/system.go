package tool

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/runtime"
)

// registerSystemHandlers wires `health` (reachability of the storage and
// cache adapters; lock and event adapters are not checked) and `init`
// (creates a first organization; a repeat call is a no-op only when it
// names an existing org_id, and the global scope has no stored row).
func registerSystemHandlers(reg *Registry) {
	reg.Register("health", "check", "report the reachability of the storage and cache adapters", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		status := map[string]string{}

		if err := ac.Runtime.Storage.Health(ctx); err != nil {
			status["storage"] = "down: " + err.Error()
		} else {
			status["storage"] = "ok"
		}

		if err := ac.Runtime.Cache.Health(ctx); err != nil {
			status["cache"] = "down: " + err.Error()
		} else {
			status["cache"] = "ok"
		}

		if ac.Runtime.Embedding != nil {
			status["embedding"] = "enabled"
		} else {
			status["embedding"] = "disabled"
		}

		healthy := status["storage"] == "ok" && status["cache"] == "ok"
		return map[string]any{
			"healthy":          healthy,
			"components":       status,
			"under_memory_pressure": ac.Runtime.MemoryPressure.UnderPressure(),
			"checked_at":       time.Now().UTC(),
		}, nil
	})

	reg.Register("init", "run", "create a first organization unless org_id names an existing one", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[initParams](req.Params)
		if err != nil {
			return nil, err
		}

		if _, err := ac.Scopes.GetOrg(ctx, p.OrgID); err == nil {
			return map[string]any{"org_id": p.OrgID, "created": false}, nil
		}

		orgID := p.OrgID
		if orgID == "" {
			orgID = uuid.NewString()
		}
		org := domain.Org{ID: orgID, Name: p.OrgName, CreatedBy: req.Actor}
		if err := ac.Scopes.CreateOrg(ctx, org); err != nil {
			return nil, err
		}
		return map[string]any{"org_id": org.ID, "created": true}, nil
	})
}

type initParams struct {
	OrgID   string `json:"org_id,omitempty"`
	OrgName string `json:"org_name" validate:"required"`
}
