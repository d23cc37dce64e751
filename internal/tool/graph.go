package tool

import (
	"context"

	"github.com/agent-memory/agent-memory/internal/runtime"
)

// registerGraphHandlers wires the read-only graph traversal surface
// restored from the dropped "graph explorer" feature (see SPEC_FULL.md
// §11 supplemented features): a thin, read-only wrapper over
// GraphRepository.Neighbors. It returns one hop only, capped at limit
// edges (50 when unset); it does not walk further like the relations
// stage of the query pipeline.
func registerGraphHandlers(reg *Registry) {
	reg.Register("graph", "neighbors", "list the graph nodes directly reachable from a node", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[graphNeighborsParams](req.Params)
		if err != nil {
			return nil, err
		}
		limit := p.Limit
		if limit <= 0 {
			limit = 50
		}
		return ac.Graph.Neighbors(ctx, p.NodeID, limit)
	})

	reg.Register("graph", "kinds", "resolve the entry kind backing a set of graph node ids", func(ctx context.Context, ac *runtime.AppContext, req Request) (any, error) {
		p, err := decodeParams[graphKindsParams](req.Params)
		if err != nil {
			return nil, err
		}
		return ac.Graph.Kinds(ctx, p.NodeIDs)
	})
}

type graphNeighborsParams struct {
	NodeID string `json:"node_id" validate:"required"`
	Limit  int    `json:"limit,omitempty"`
}

type graphKindsParams struct {
	NodeIDs []string `json:"node_ids" validate:"required,min=1"`
}
