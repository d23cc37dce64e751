package tool

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/repository"
	"github.com/agent-memory/agent-memory/internal/runtime"
)

func registerRelationHandlers(reg *Registry) {
	reg.Register("relation", "create", "link two entries with a typed relation", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[relationCreateParams](req.Params)
		if err != nil {
			return nil, err
		}
		rel := domain.Relation{
			ID:         uuid.NewString(),
			SourceKind: domain.EntryKind(p.SourceKind),
			SourceID:   p.SourceID,
			TargetKind: domain.EntryKind(p.TargetKind),
			TargetID:   p.TargetID,
			Type:       domain.RelationType(p.Type),
			Properties: p.Properties,
			CreatedAt:  time.Now().UTC(),
		}
		if err := ac.Relations.Create(ctx, rel); err != nil {
			return nil, err
		}

		mirrorGraphNode(ctx, ac, rel.SourceKind, rel.SourceID)
		mirrorGraphNode(ctx, ac, rel.TargetKind, rel.TargetID)
		_ = ac.Graph.UpsertEdge(ctx, domain.GraphEdge{ID: rel.ID, SourceNode: rel.SourceID, TargetNode: rel.TargetID, Type: rel.Type})
		return rel, nil
	})

	reg.Register("relation", "delete", "remove a relation", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[idParams](req.Params)
		if err != nil {
			return nil, err
		}
		if err := ac.Relations.Delete(ctx, p.ID); err != nil {
			return nil, err
		}
		_ = ac.Graph.DeleteEdge(ctx, p.ID)
		return map[string]any{"id": p.ID}, nil
	})

	reg.Register("relation", "list", "list the relations touching an entry", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[relationListParams](req.Params)
		if err != nil {
			return nil, err
		}
		dir := repository.Direction(p.Direction)
		if dir == "" {
			dir = repository.DirectionBoth
		}
		return ac.Relations.ForEntry(ctx, domain.EntryKind(p.Kind), p.ID, dir)
	})
}

// mirrorGraphNode refreshes the graph node for an entry with its
// current scope, best-effort — a stale or missing mirror only narrows
// what the graph tool's traversal can see, it never blocks the relation
// write that is the actual source of truth.
func mirrorGraphNode(ctx context.Context, ac *runtime.AppContext, kind domain.EntryKind, id string) {
	repo, ok := ac.Entries[kind]
	if !ok {
		return
	}
	entry, err := repo.GetByID(ctx, id)
	if err != nil {
		return
	}
	_ = ac.Graph.UpsertNode(ctx, domain.GraphNode{ID: id, Kind: kind, Scope: entry.Scope})
}

type relationCreateParams struct {
	SourceKind string         `json:"source_kind" validate:"required,oneof=guideline knowledge tool"`
	SourceID   string         `json:"source_id" validate:"required"`
	TargetKind string         `json:"target_kind" validate:"required,oneof=guideline knowledge tool"`
	TargetID   string         `json:"target_id" validate:"required"`
	Type       string         `json:"type" validate:"required"`
	Properties map[string]any `json:"properties,omitempty"`
}

type relationListParams struct {
	Kind      string `json:"kind" validate:"required,oneof=guideline knowledge tool"`
	ID        string `json:"id" validate:"required"`
	Direction string `json:"direction,omitempty" validate:"omitempty,oneof=forward backward both"`
}
