package tool

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/repository"
	"github.com/agent-memory/agent-memory/internal/runtime"
)

// exportedEntry is the portable shape one entry is serialized to/from by
// the export/import tools — deliberately narrower than domain.Entry so a
// re-import never tries to replay a stored id, audit trail, or version
// history, only the current head content.
type exportedEntry struct {
	Kind     string         `json:"kind"`
	Name     string         `json:"name"`
	Category string         `json:"category,omitempty"`
	Priority int            `json:"priority,omitempty"`
	Scope    scopeParam     `json:"scope"`
	Payload  map[string]any `json:"payload"`
}

func registerDataHandlers(reg *Registry) {
	reg.Register("export", "run", "export every active entry under a scope as portable JSON", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[exportParams](req.Params)
		if err != nil {
			return nil, err
		}
		scopes := []domain.ScopeRef{p.Scope.ref()}

		out := make([]exportedEntry, 0)
		for kind, repo := range ac.Entries {
			entries, err := repo.ListWithPayload(ctx, repository.ListFilter{Scopes: scopes, ActiveOnly: true})
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				out = append(out, exportedEntry{
					Kind:     string(kind),
					Name:     e.Name,
					Category: e.Category,
					Priority: e.Priority,
					Scope:    fromRef(e.Scope),
					Payload:  e.Payload,
				})
			}
		}
		return map[string]any{"exported_at": time.Now().UTC(), "entries": out}, nil
	})

	reg.Register("import", "run", "recreate entries from a prior export payload", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[importParams](req.Params)
		if err != nil {
			return nil, err
		}

		created := 0
		skipped := make([]string, 0)
		for _, e := range p.Entries {
			kind := domain.EntryKind(e.Kind)
			repo, ok := ac.Entries[kind]
			if !ok {
				skipped = append(skipped, e.Name)
				continue
			}
			header := domain.Header{
				ID:        uuid.NewString(),
				Kind:      kind,
				Name:      e.Name,
				Category:  e.Category,
				Scope:     e.Scope.ref(),
				Priority:  e.Priority,
				CreatedBy: p.Actor,
			}
			if _, err := repo.Create(ctx, header, e.Payload); err != nil {
				skipped = append(skipped, e.Name)
				continue
			}
			created++
		}
		return map[string]any{"created": created, "skipped": skipped}, nil
	})
}

type exportParams struct {
	Scope scopeParam `json:"scope" validate:"required"`
}

type importParams struct {
	Actor   string          `json:"actor" validate:"required"`
	Entries []exportedEntry `json:"entries" validate:"required,min=1,dive"`
}
