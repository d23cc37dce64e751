package query

import (
	"context"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/repository"
)

// relations performs a bounded breadth-first walk from Request.RelatedTo
// when present, and narrows pc.Entries to whatever is reachable. The
// walk is bounded by both depth and DefaultRelationNodeBudget and never
// errors on either bound: exhausting the node budget marks the result
// truncated, while reaching the requested depth simply ends the walk.
func (p *Pipeline) relations(ctx context.Context, pc *PCtx) error {
	rt := pc.Request.RelatedTo
	if rt == nil {
		return nil
	}

	visited := map[string]struct{}{rt.ID: {}}
	frontier := []string{rt.ID}
	budgetExhausted := false

	for depth := 0; depth < rt.Depth && len(frontier) > 0 && !budgetExhausted; depth++ {
		var next []string
		for _, nodeID := range frontier {
			edges, err := p.deps.Graph.Neighbors(ctx, nodeID, 0)
			if err != nil {
				return err
			}
			for _, e := range edges {
				candidate, ok := nextNode(e, nodeID, rt.Direction)
				if !ok {
					continue
				}
				if _, seen := visited[candidate]; seen {
					continue
				}
				if len(visited) >= DefaultRelationNodeBudget {
					budgetExhausted = true
					break
				}
				visited[candidate] = struct{}{}
				next = append(next, candidate)
			}
			if budgetExhausted {
				break
			}
		}
		frontier = next
	}
	if budgetExhausted {
		p.markTruncated(pc, "relations")
	}

	ids := make([]string, 0, len(visited))
	for id := range visited {
		ids = append(ids, id)
	}
	kinds, err := p.deps.Graph.Kinds(ctx, ids)
	if err != nil {
		return err
	}

	pc.RelationSet = make(map[domain.EntryKind]map[string]struct{})
	for id, kind := range kinds {
		if pc.RelationSet[kind] == nil {
			pc.RelationSet[kind] = make(map[string]struct{})
		}
		pc.RelationSet[kind][id] = struct{}{}
	}

	for kind, entries := range pc.Entries {
		reachable := pc.RelationSet[kind]
		survivors := entries[:0]
		for _, e := range entries {
			if _, ok := reachable[e.ID]; ok {
				survivors = append(survivors, e)
			}
		}
		pc.Entries[kind] = survivors
	}
	return nil
}

// nextNode returns the node at the far end of e from currentID given
// direction, and whether that end should be followed at all.
func nextNode(e domain.GraphEdge, currentID string, dir repository.Direction) (string, bool) {
	switch dir {
	case repository.DirectionForward:
		if e.SourceNode == currentID {
			return e.TargetNode, true
		}
		return "", false
	case repository.DirectionBackward:
		if e.TargetNode == currentID {
			return e.SourceNode, true
		}
		return "", false
	default:
		if e.SourceNode == currentID {
			return e.TargetNode, true
		}
		if e.TargetNode == currentID {
			return e.SourceNode, true
		}
		return "", false
	}
}
