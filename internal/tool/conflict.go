package tool

import (
	"context"

	"github.com/agent-memory/agent-memory/internal/runtime"
)

func registerConflictHandlers(reg *Registry) {
	reg.Register("conflict", "list", "list detected version conflicts for an entry", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[entryIDParams](req.Params)
		if err != nil {
			return nil, err
		}
		return ac.Conflicts.ForEntry(ctx, p.ID)
	})

	reg.Register("conflict", "resolve", "mark a conflict resolved", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[conflictResolveParams](req.Params)
		if err != nil {
			return nil, err
		}
		if err := ac.Conflicts.Resolve(ctx, p.ID, p.ResolvedBy); err != nil {
			return nil, err
		}
		return map[string]any{"id": p.ID}, nil
	})
}

type conflictResolveParams struct {
	ID         string `json:"id" validate:"required"`
	ResolvedBy string `json:"resolved_by" validate:"required"`
}
