package query

import (
	"context"
	"strings"

	"github.com/agent-memory/agent-memory/internal/domain"
)

// filter narrows pc.Entries in place by category, priority range, tag
// set operations, date range, active/inactive, and (when a search
// string was given) requiring a match from the fts stage.
func (p *Pipeline) filter(_ context.Context, pc *PCtx) error {
	req := pc.Request
	searching := strings.TrimSpace(req.Search) != ""

	for kind, entries := range pc.Entries {
		matches := pc.TypeSets[kind]
		survivors := entries[:0]

		for _, e := range entries {
			if req.ActiveOnly && !e.Active {
				continue
			}
			if req.Category != "" && e.Category != req.Category {
				continue
			}
			if req.PriorityMin != nil && e.Priority < *req.PriorityMin {
				continue
			}
			if req.PriorityMax != nil && e.Priority > *req.PriorityMax {
				continue
			}
			if req.DateFrom != nil && e.CreatedAt.Before(*req.DateFrom) {
				continue
			}
			if req.DateTo != nil && e.CreatedAt.After(*req.DateTo) {
				continue
			}
			if !tagsMatch(req.Tags, pc.TagMap[e.ID]) {
				continue
			}
			if searching {
				if _, ok := matches[e.ID]; !ok {
					continue
				}
			}
			survivors = append(survivors, e)
		}
		pc.Entries[kind] = survivors
	}
	return nil
}

// tagsMatch applies set-operation semantics over an entry's attached
// tags: include is "any of", require is "all of", exclude is "none of".
func tagsMatch(f TagFilter, tags []domain.Tag) bool {
	names := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		names[t.Name] = struct{}{}
	}

	if len(f.Include) > 0 {
		any := false
		for _, n := range f.Include {
			if _, ok := names[n]; ok {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	for _, n := range f.Require {
		if _, ok := names[n]; !ok {
			return false
		}
	}
	for _, n := range f.Exclude {
		if _, ok := names[n]; ok {
			return false
		}
	}
	return true
}
