package tool

import (
	"context"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/repository"
	"github.com/agent-memory/agent-memory/internal/runtime"
)

// registerAnalyticsHandlers implements the `analytics` tool's "stats"
// action: entry counts by kind and active flag within a scope, built
// from the same EntryRepository.List coarse filter the query pipeline's
// fetch stage uses, not a separate aggregation table.
func registerAnalyticsHandlers(reg *Registry) {
	reg.Register("analytics", "stats", "report entry counts by kind for a scope", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[analyticsStatsParams](req.Params)
		if err != nil {
			return nil, err
		}
		scopes := []domain.ScopeRef{p.Scope.ref()}

		counts := make(map[string]map[string]int, len(ac.Entries))
		for kind, repo := range ac.Entries {
			active, err := repo.List(ctx, repository.ListFilter{Scopes: scopes, ActiveOnly: true})
			if err != nil {
				return nil, err
			}
			all, err := repo.List(ctx, repository.ListFilter{Scopes: scopes})
			if err != nil {
				return nil, err
			}
			counts[string(kind)] = map[string]int{"active": len(active), "total": len(all)}
		}

		tags, err := ac.Tags.List(ctx)
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"scope":      p.Scope,
			"entries":    counts,
			"tag_count":  len(tags),
		}, nil
	})
}

type analyticsStatsParams struct {
	Scope scopeParam `json:"scope" validate:"required"`
}
