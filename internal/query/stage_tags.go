package query

import "context"

// tagsStage trims pc.TagMap down to the entries that survived filter.
// The batch load itself already happened in fetch (one query per
// kind, keyed by the full fetched set) to let filter's tag predicates
// see every candidate's tags; this stage just drops what filter
// eliminated so format never serializes tags for an entry it isn't
// returning.
func (p *Pipeline) tagsStage(_ context.Context, pc *PCtx) error {
	keep := make(map[string]struct{})
	for _, entries := range pc.Entries {
		for _, e := range entries {
			keep[e.ID] = struct{}{}
		}
	}
	for id := range pc.TagMap {
		if _, ok := keep[id]; !ok {
			delete(pc.TagMap, id)
		}
	}
	return nil
}
