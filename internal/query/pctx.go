package query

import "github.com/agent-memory/agent-memory/internal/domain"

// Meta carries pipeline-wide bookkeeping surfaced to the caller in the
// formatted response.
type Meta struct {
	Truncated     bool
	CacheHit      bool
	TotalEstimate int
	NextCursor    string
}

// PCtx is the mutable context threaded through all eight stages. Each
// stage reads what earlier stages produced and narrows or annotates it;
// none of them re-query what a prior stage already loaded.
type PCtx struct {
	Request Request

	// ScopeChain is the resolved ancestry, most-specific first, set by resolve.
	ScopeChain domain.Chain

	// Entries holds every active entry fetched per kind, set by fetch.
	Entries map[domain.EntryKind][]domain.Entry

	// TypeSets holds the per-kind identifier set matching the search
	// string (and its lexical score), set by fts. Without a search
	// string fts sets nothing, so a kind has no map at all; an empty map
	// for a kind means a search ran and nothing of that kind matched.
	TypeSets map[domain.EntryKind]map[string]float64

	// TagMap holds every surviving entry's tags, keyed by entry id, set by tags.
	TagMap map[string][]domain.Tag

	// RelationSet holds identifiers reachable from a related_to
	// traversal, keyed by kind, set by relations. Nil if no related_to
	// was requested (meaning: do not filter by reachability at all).
	RelationSet map[domain.EntryKind]map[string]struct{}

	// Scores holds each surviving entry's final relevance score, keyed
	// by entry id, set by score.
	Scores map[string]float64

	Meta Meta
}

func newPCtx(req Request) *PCtx {
	return &PCtx{
		Request:  req,
		Entries:  make(map[domain.EntryKind][]domain.Entry),
		TypeSets: make(map[domain.EntryKind]map[string]float64),
		TagMap:   make(map[string][]domain.Tag),
		Scores:   make(map[string]float64),
	}
}
