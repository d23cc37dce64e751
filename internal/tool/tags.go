package tool

import (
	"context"

	"github.com/google/uuid"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/runtime"
)

func registerTagHandlers(reg *Registry) {
	reg.Register("tag", "create", "create a reusable tag", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[tagCreateParams](req.Params)
		if err != nil {
			return nil, err
		}
		tag := domain.Tag{ID: uuid.NewString(), Name: p.Name, Color: p.Color, Description: p.Description}
		if err := ac.Tags.Create(ctx, tag); err != nil {
			return nil, err
		}
		return tag, nil
	})

	reg.Register("tag", "list", "list every known tag", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		return ac.Tags.List(ctx)
	})

	reg.Register("tag", "delete", "delete a tag and every attachment of it", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[idParams](req.Params)
		if err != nil {
			return nil, err
		}
		if err := ac.Tags.Delete(ctx, p.ID); err != nil {
			return nil, err
		}
		return map[string]any{"id": p.ID}, nil
	})

	reg.Register("tag", "attach", "attach a tag to an entry", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[tagAttachParams](req.Params)
		if err != nil {
			return nil, err
		}
		if err := ac.Tags.Attach(ctx, domain.EntryKind(p.EntryKind), p.EntryID, p.TagID); err != nil {
			return nil, err
		}
		return map[string]any{"entry_id": p.EntryID, "tag_id": p.TagID}, nil
	})

	reg.Register("tag", "detach", "detach a tag from an entry", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[tagAttachParams](req.Params)
		if err != nil {
			return nil, err
		}
		if err := ac.Tags.Detach(ctx, domain.EntryKind(p.EntryKind), p.EntryID, p.TagID); err != nil {
			return nil, err
		}
		return map[string]any{"entry_id": p.EntryID, "tag_id": p.TagID}, nil
	})
}

type tagCreateParams struct {
	Name        string `json:"name" validate:"required"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

type tagAttachParams struct {
	EntryKind string `json:"entry_kind" validate:"required,oneof=guideline knowledge tool"`
	EntryID   string `json:"entry_id" validate:"required"`
	TagID     string `json:"tag_id" validate:"required"`
}
