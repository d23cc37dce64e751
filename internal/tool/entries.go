package tool

import (
	"context"

	"github.com/google/uuid"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
	"github.com/agent-memory/agent-memory/internal/repository"
	"github.com/agent-memory/agent-memory/internal/runtime"
	"github.com/agent-memory/agent-memory/internal/service/audit"
	"github.com/agent-memory/agent-memory/internal/service/embedding"
)

// registerEntryHandlers wires the create/get/list/update/delete/history
// actions shared by the three entry-kind tools (guideline, knowledge,
// tool) to one kind's EntryRepository. The three tools differ only in
// which kind they bind — the handlers themselves are kind-agnostic,
// same as EntryRepository itself.
func registerEntryHandlers(reg *Registry, name string, kind domain.EntryKind) {
	reg.Register(name, "create", "create a new "+name+" entry", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[entryCreateParams](req.Params)
		if err != nil {
			return nil, err
		}
		scope := p.Scope.ref()
		if err := checkWrite(ctx, ac, req.Actor, kind, scope); err != nil {
			return nil, err
		}

		header := domain.Header{
			ID:       uuid.NewString(),
			Kind:     kind,
			Name:     p.Name,
			Category: p.Category,
			Scope:    scope,
			Priority: p.Priority,
			TagIDs:   p.TagIDs,
			CreatedBy: p.Actor,
		}
		entry, err := ac.Entries[kind].Create(ctx, header, p.Payload)
		if err != nil {
			return nil, err
		}
		ac.Audit.Record(ctx, audit.Entry{
			Action: "create", EntryKind: kind, EntryID: entry.ID,
			Actor: p.Actor, Scope: scope, Snapshot: p.Payload,
		})
		enqueueEmbedding(ac, entry)
		return entry, nil
	})

	reg.Register(name, "get", "fetch a "+name+" entry by id", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[entryIDParams](req.Params)
		if err != nil {
			return nil, err
		}
		return ac.Entries[kind].GetByID(ctx, p.ID)
	})

	reg.Register(name, "list", "list "+name+" entries", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[entryListParams](req.Params)
		if err != nil {
			return nil, err
		}
		filter := repository.ListFilter{
			Category:   p.Category,
			ActiveOnly: p.ActiveOnly,
			Limit:      p.Limit,
			Offset:     p.Offset,
		}
		if p.Scope != nil {
			filter.Scopes = []domain.ScopeRef{p.Scope.ref()}
		}
		return ac.Entries[kind].ListWithPayload(ctx, filter)
	})

	reg.Register(name, "update", "update a "+name+" entry, creating a new version", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[entryUpdateParams](req.Params)
		if err != nil {
			return nil, err
		}
		existing, err := ac.Entries[kind].GetByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if err := checkWrite(ctx, ac, req.Actor, kind, existing.Scope); err != nil {
			return nil, err
		}
		entry, err := ac.Entries[kind].Update(ctx, p.ID, p.Payload, p.Reason, p.Actor)
		if err != nil {
			return nil, err
		}
		ac.Audit.Record(ctx, audit.Entry{
			Action: "update", EntryKind: kind, EntryID: p.ID,
			Actor: p.Actor, Scope: existing.Scope, Snapshot: p.Payload,
		})
		enqueueEmbedding(ac, entry)
		return entry, nil
	})

	reg.Register(name, "delete", "deactivate or permanently remove a "+name+" entry", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[entryDeleteParams](req.Params)
		if err != nil {
			return nil, err
		}
		existing, err := ac.Entries[kind].GetByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if err := checkWrite(ctx, ac, req.Actor, kind, existing.Scope); err != nil {
			return nil, err
		}

		if p.Permanent {
			err = ac.Entries[kind].Delete(ctx, p.ID, existing.Scope)
		} else {
			err = ac.Entries[kind].SetActive(ctx, p.ID, false, existing.Scope)
		}
		if err != nil {
			return nil, err
		}
		ac.Audit.Record(ctx, audit.Entry{
			Action: "delete", EntryKind: kind, EntryID: p.ID,
			Actor: p.Actor, Scope: existing.Scope,
		})
		return map[string]any{"id": p.ID, "permanent": p.Permanent}, nil
	})

	reg.Register(name, "history", "list every stored version of a "+name+" entry", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[entryIDParams](req.Params)
		if err != nil {
			return nil, err
		}
		return ac.Entries[kind].History(ctx, p.ID)
	})
}

// enqueueEmbedding submits the entry's current head version for
// background embedding. Best-effort: Enqueue itself already tolerates
// a disabled or saturated pipeline, so there is nothing to surface to
// the caller either way.
func enqueueEmbedding(ac *runtime.AppContext, entry *domain.Entry) {
	if ac.Runtime.Embedding == nil {
		return
	}
	ac.Runtime.Embedding.Enqueue(embedding.Job{
		EntryKind:       entry.Kind,
		EntryID:         entry.ID,
		VersionID:       entry.HeadVersion,
		TextFingerprint: entry.TextFingerprint(),
	})
}

// checkWrite denies a mutation when the permission service resolves
// false, surfacing a taxonomy Permission-range error rather than a bare
// bool to the caller.
func checkWrite(ctx context.Context, ac *runtime.AppContext, actor string, kind domain.EntryKind, scope domain.ScopeRef) error {
	allowed, err := ac.Permission.Check(ctx, permissionRequest(actor, domain.ActionWrite, kind, scope))
	if err != nil {
		return err
	}
	if !allowed {
		return apperror.New(apperror.CodeDenied, "agent is not permitted to write this entry", "agent_id", actor, "scope", scope.String())
	}
	return nil
}

type entryCreateParams struct {
	Name     string         `json:"name" validate:"required"`
	Category string         `json:"category,omitempty"`
	Scope    scopeParam     `json:"scope" validate:"required"`
	Priority int            `json:"priority,omitempty"`
	TagIDs   []string       `json:"tag_ids,omitempty"`
	Payload  map[string]any `json:"payload" validate:"required"`
	Actor    string         `json:"actor" validate:"required"`
}

type entryIDParams struct {
	ID string `json:"id" validate:"required"`
}

type entryListParams struct {
	Scope      *scopeParam `json:"scope,omitempty"`
	Category   string      `json:"category,omitempty"`
	ActiveOnly bool        `json:"active_only,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Offset     int         `json:"offset,omitempty"`
}

type entryUpdateParams struct {
	ID      string         `json:"id" validate:"required"`
	Payload map[string]any `json:"payload" validate:"required"`
	Reason  string         `json:"reason,omitempty"`
	Actor   string         `json:"actor" validate:"required"`
}

type entryDeleteParams struct {
	ID        string `json:"id" validate:"required"`
	Permanent bool   `json:"permanent,omitempty"`
	Actor     string `json:"actor" validate:"required"`
}
