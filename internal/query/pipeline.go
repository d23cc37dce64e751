package query

import (
	"context"
	"time"

	"github.com/agent-memory/agent-memory/internal/adapter/vector"
	"github.com/agent-memory/agent-memory/internal/cursor"
	"github.com/agent-memory/agent-memory/internal/domain"
	"github.com/agent-memory/agent-memory/internal/metrics"
	"github.com/agent-memory/agent-memory/internal/repository"
)

// DefaultFetchBudget is the per-kind ceiling the fetch stage applies
// when the request's limit does not already impose a tighter one.
const DefaultFetchBudget = 100

// DefaultRelationNodeBudget bounds how many nodes the relations stage
// will visit during a bounded traversal before truncating.
const DefaultRelationNodeBudget = 500

// Deps wires the pipeline to its repositories and shared services. Only
// Entries is keyed by kind; every other repository is kind-agnostic.
type Deps struct {
	Scopes      *repository.ScopeRepository
	Entries     map[domain.EntryKind]*repository.EntryRepository
	Tags        *repository.TagRepository
	Relations   *repository.RelationRepository
	Graph       *repository.GraphRepository
	Conflicts   *repository.ConflictRepository
	Vectors     vector.Store // nil when the semantic path is disabled
	Embedder    Embedder     // nil when the semantic path is disabled
	Cursor      *cursor.Codec
	Metrics     *metrics.Registry
	FetchBudget int
}

// Embedder is the narrow surface the score stage needs from the
// embedding service: turning a search string into a query vector. It is
// intentionally not internal/service/embedding.Service itself, so the
// pipeline never depends on the job-queue machinery that services use
// to populate entry vectors.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, bool, error)
}

// Pipeline runs the eight fixed stages over one request.
type Pipeline struct {
	deps Deps
}

// New constructs a Pipeline. deps.FetchBudget defaults to
// DefaultFetchBudget when zero.
func New(deps Deps) *Pipeline {
	if deps.FetchBudget <= 0 {
		deps.FetchBudget = DefaultFetchBudget
	}
	return &Pipeline{deps: deps}
}

// Result is what Run hands back to a tool handler: the formatted items
// plus pipeline metadata.
type Result struct {
	Items []FormattedEntry
	Meta  Meta
}

// Run executes resolve, fetch, fts, filter, tags, relations, score, and
// format in that fixed order against a fresh PCtx.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	pc := newPCtx(req)

	stages := []struct {
		name string
		fn   func(context.Context, *PCtx) error
	}{
		{"resolve", p.resolve},
		{"fetch", p.fetch},
		{"fts", p.fts},
		{"filter", p.filter},
		{"tags", p.tagsStage},
		{"relations", p.relations},
		{"score", p.score},
	}

	for _, s := range stages {
		if err := p.timedStage(ctx, s.name, pc, s.fn); err != nil {
			return nil, err
		}
	}

	items, err := p.format(ctx, pc)
	if err != nil {
		return nil, err
	}

	return &Result{Items: items, Meta: pc.Meta}, nil
}

func (p *Pipeline) timedStage(ctx context.Context, name string, pc *PCtx, fn func(context.Context, *PCtx) error) error {
	start := time.Now()
	err := fn(ctx, pc)
	if p.deps.Metrics != nil {
		p.deps.Metrics.PipelineStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	return err
}

func (p *Pipeline) markTruncated(pc *PCtx, stage string) {
	pc.Meta.Truncated = true
	if p.deps.Metrics != nil {
		p.deps.Metrics.PipelineTruncations.WithLabelValues(stage).Inc()
	}
}
