package query

import (
	"context"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
)

// resolve validates the request and materializes the scope chain,
// most-specific first. A project/session identifier that does not
// resolve to a stored row is a validation error, never a silent
// fall-back to a broader scope.
func (p *Pipeline) resolve(ctx context.Context, pc *PCtx) error {
	if len(pc.Request.Kinds) == 0 {
		return apperror.Validation("kinds", "at least one entry kind must be requested")
	}
	for _, k := range pc.Request.Kinds {
		if !k.Valid() {
			return apperror.Validation("kinds", "unknown entry kind")
		}
		if _, ok := p.deps.Entries[k]; !ok {
			return apperror.Validation("kinds", "entry kind has no backing repository")
		}
	}

	scope := pc.Request.Scope
	if scope.Kind == "" {
		scope = domain.Global
	}

	chain, err := p.deps.Scopes.Resolve(ctx, scope)
	if err != nil {
		return err
	}
	if !pc.Request.Inherit {
		chain = chain[:1]
	}
	pc.ScopeChain = chain

	if pc.Request.RelatedTo != nil {
		rt := pc.Request.RelatedTo
		if rt.ID == "" || !rt.Kind.Valid() {
			return apperror.Validation("related_to", "related_to requires a valid kind and id")
		}
		if rt.Depth <= 0 {
			rt.Depth = 1
		}
	}

	return nil
}
