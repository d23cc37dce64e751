package tool

import (
	"context"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/query"
	"github.com/agent-memory/agent-memory/internal/repository"
	"github.com/agent-memory/agent-memory/internal/runtime"
)

func registerQueryHandlers(reg *Registry) {
	reg.Register("query", "search", "run the eight-stage query pipeline over entries", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[queryParams](req.Params)
		if err != nil {
			return nil, err
		}
		result, err := ac.Pipeline.Run(ctx, p.toRequest(query.ShapeFull))
		if err != nil {
			return nil, err
		}
		return result, nil
	})

	reg.Register("query", "context", "run the query pipeline and return a compact, prompt-ready shape", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[queryParams](req.Params)
		if err != nil {
			return nil, err
		}
		result, err := ac.Pipeline.Run(ctx, p.toRequest(query.ShapeCompact))
		if err != nil {
			return nil, err
		}
		return result, nil
	})
}

type queryTagsParams struct {
	Include []string `json:"include,omitempty"`
	Require []string `json:"require,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

type queryRelatedParams struct {
	Kind      string `json:"type" validate:"required,oneof=guideline knowledge tool"`
	ID        string `json:"id" validate:"required"`
	Direction string `json:"direction,omitempty" validate:"omitempty,oneof=forward backward both"`
	Depth     int    `json:"depth,omitempty"`
}

type queryParams struct {
	Scope      scopeParam          `json:"scope" validate:"required"`
	Inherit    bool                `json:"inherit,omitempty"`
	Types      []string            `json:"types" validate:"required,min=1,dive,oneof=guidelines knowledge tools"`
	Search     string              `json:"search,omitempty"`
	Tags       *queryTagsParams    `json:"tags,omitempty"`
	Category   string              `json:"category,omitempty"`
	PriorityMin *int               `json:"priority_min,omitempty"`
	PriorityMax *int               `json:"priority_max,omitempty"`
	RelatedTo  *queryRelatedParams `json:"related_to,omitempty"`
	ActiveOnly bool                `json:"active_only,omitempty"`
	Limit      int                 `json:"limit,omitempty"`
	Cursor     string              `json:"cursor,omitempty"`
}

var typeToKind = map[string]domain.EntryKind{
	"guidelines": domain.KindGuideline,
	"knowledge":  domain.KindKnowledge,
	"tools":      domain.KindTool,
}

func (p queryParams) toRequest(shape query.Shape) query.Request {
	kinds := make([]domain.EntryKind, 0, len(p.Types))
	for _, t := range p.Types {
		if k, ok := typeToKind[t]; ok {
			kinds = append(kinds, k)
		}
	}

	req := query.Request{
		Kinds:      kinds,
		Scope:      p.Scope.ref(),
		Inherit:    p.Inherit,
		Category:   p.Category,
		PriorityMin: p.PriorityMin,
		PriorityMax: p.PriorityMax,
		ActiveOnly: p.ActiveOnly,
		Search:     p.Search,
		Limit:      p.Limit,
		Cursor:     p.Cursor,
		Shape:      shape,
	}
	if p.Tags != nil {
		req.Tags = query.TagFilter{Include: p.Tags.Include, Require: p.Tags.Require, Exclude: p.Tags.Exclude}
	}
	if p.RelatedTo != nil {
		dir := repository.Direction(p.RelatedTo.Direction)
		if dir == "" {
			dir = repository.DirectionBoth
		}
		req.RelatedTo = &query.RelatedTo{
			Kind:      domain.EntryKind(p.RelatedTo.Kind),
			ID:        p.RelatedTo.ID,
			Direction: dir,
			Depth:     p.RelatedTo.Depth,
		}
	}
	return req
}
