// Package query implements the eight-stage result pipeline: resolve,
// fetch, fts, filter, tags, relations, score, format. Each stage is a
// method taking and returning the same *PCtx, so the pipeline itself is
// a short, linear list of calls (Pipeline.Run) rather than a generic
// stage-registry abstraction — there are exactly eight stages, always in
// this order, and a registry would only hide that.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/repository"
)

// Shape selects how format projects a matched entry.
type Shape string

const (
	ShapeFull    Shape = "full"
	ShapeSummary Shape = "summary"
	ShapeCompact Shape = "compact"
)

// TagFilter expresses set-membership constraints over an entry's tags.
type TagFilter struct {
	Include []string // any of these match
	Require []string // all of these must be present
	Exclude []string // none of these may be present
}

// RelatedTo requests a bounded graph traversal anchored at one entry.
type RelatedTo struct {
	Kind      domain.EntryKind
	ID        string
	Direction repository.Direction
	Depth     int
}

// Request is the caller-supplied query shape, validated and expanded by
// the resolve stage.
type Request struct {
	Kinds        []domain.EntryKind
	Scope        domain.ScopeRef
	Inherit      bool
	Category     string
	PriorityMin  *int
	PriorityMax  *int
	Tags         TagFilter
	DateFrom     *time.Time
	DateTo       *time.Time
	ActiveOnly   bool
	Search       string
	RelatedTo    *RelatedTo
	Limit        int
	Cursor       string
	Shape        Shape
}

// FilterHash is a stable digest of every field that determines a
// request's result set, excluding Cursor itself — it is what a minted
// cursor is checked against so a cursor from one query can never be
// replayed against a different one, and what the result cache keys on.
func (r Request) FilterHash() string {
	kinds := append([]domain.EntryKind(nil), r.Kinds...)
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	parts := struct {
		Kinds       []domain.EntryKind
		Scope       domain.ScopeRef
		Inherit     bool
		Category    string
		PriorityMin *int
		PriorityMax *int
		Tags        TagFilter
		DateFrom    *time.Time
		DateTo      *time.Time
		ActiveOnly  bool
		Search      string
		RelatedTo   *RelatedTo
		Limit       int
		Shape       Shape
	}{kinds, r.Scope, r.Inherit, r.Category, r.PriorityMin, r.PriorityMax, r.Tags,
		r.DateFrom, r.DateTo, r.ActiveOnly, r.Search, r.RelatedTo, r.Limit, r.Shape}

	raw, _ := json.Marshal(parts)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
