package query

import (
	"context"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/repository"
)

// fetch loads entries per requested kind across the resolved scope
// chain, one scope level at a time so chain order (most specific first)
// is preserved for later tie-breaking, up to a per-kind budget. Tags
// for every fetched entry are batch-loaded here (one query per kind)
// rather than in the later "tags" stage, which only trims pc.TagMap
// down to whatever survives filtering — see DESIGN.md for why.
func (p *Pipeline) fetch(ctx context.Context, pc *PCtx) error {
	budget := p.deps.FetchBudget
	if pc.Request.Limit > 0 && pc.Request.Limit < budget {
		budget = pc.Request.Limit
	}

	for _, kind := range pc.Request.Kinds {
		repo := p.deps.Entries[kind]

		var entries []domain.Entry
		remaining := budget
		for _, scope := range pc.ScopeChain {
			if remaining <= 0 {
				p.markTruncated(pc, "fetch")
				break
			}
			page, err := repo.ListWithPayload(ctx, repository.ListFilter{
				Scopes: []domain.ScopeRef{scope},
				Limit:  remaining,
			})
			if err != nil {
				return err
			}
			entries = append(entries, page...)
			remaining -= len(page)
		}
		pc.Entries[kind] = entries

		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		tagMap, err := p.deps.Tags.ForEntries(ctx, kind, ids)
		if err != nil {
			return err
		}
		for id, tags := range tagMap {
			pc.TagMap[id] = tags
		}
	}
	return nil
}
