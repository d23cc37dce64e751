package query

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/agent-memory/agent-memory/internal/adapter/vector"
	"github.com/agent-memory/agent-memory/internal/domain"
)

// semanticWeight and lexicalWeight are the fixed blend coefficients
// applied when a semantic similarity score is available.
const (
	semanticWeight = 0.7
	lexicalWeight  = 0.3
)

// score computes each surviving entry's final relevance score and
// leaves pc.Entries sorted descending, ties broken by (scope
// specificity, priority, most recent creation, identifier). The
// recency tie-break reads the entry's CreatedAt; a later update does not
// move an entry ahead.
func (p *Pipeline) score(ctx context.Context, pc *PCtx) error {
	searching := strings.TrimSpace(pc.Request.Search) != ""

	var queryVec []float32
	semanticEnabled := false
	if searching && p.deps.Embedder != nil {
		if v, ok, err := p.deps.Embedder.EmbedQuery(ctx, pc.Request.Search); err == nil && ok {
			queryVec = v
			semanticEnabled = true
		}
	}

	for kind, entries := range pc.Entries {
		lexical := pc.TypeSets[kind]
		for _, e := range entries {
			tagMatch := 0.0
			if len(pc.TagMap[e.ID]) > 0 {
				tagMatch = 1.0
			}
			scopeSpecificity := float64(e.Scope.Kind.Rank())
			lexicalMatch := lexical[e.ID]
			recency := recencyScore(e)
			priorityTerm := float64(e.Priority) / 100.0

			var final float64
			if semanticEnabled && p.deps.Vectors != nil {
				sim, ok := p.semanticSimilarity(ctx, kind, e, queryVec)
				if ok {
					normalized := normalize(tagMatch + scopeSpecificity + priorityTerm + lexicalMatch + recency)
					final = semanticWeight*sim + lexicalWeight*normalized
				} else {
					final = tagMatch + scopeSpecificity + lexicalMatch + priorityTerm + recency
				}
			} else {
				final = tagMatch + scopeSpecificity + lexicalMatch + priorityTerm + recency
			}
			pc.Scores[e.ID] = final
		}

		sort.SliceStable(entries, func(i, j int) bool {
			a, b := entries[i], entries[j]
			if pc.Scores[a.ID] != pc.Scores[b.ID] {
				return pc.Scores[a.ID] > pc.Scores[b.ID]
			}
			if a.Scope.Kind.Rank() != b.Scope.Kind.Rank() {
				return a.Scope.Kind.Rank() > b.Scope.Kind.Rank()
			}
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID < b.ID
		})
		pc.Entries[kind] = entries
	}
	return nil
}

func (p *Pipeline) semanticSimilarity(ctx context.Context, kind domain.EntryKind, e domain.Entry, query []float32) (float64, bool) {
	vec, ok, err := p.deps.Vectors.Get(ctx, vector.Key{EntryKind: string(kind), EntryID: e.ID, VersionID: e.HeadVersion})
	if err != nil || !ok {
		return 0, false
	}
	return cosineSimilarity(query, vec), true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// normalize caps the combined lexical-path score into roughly [0, 1]
// so it blends sensibly against a cosine similarity on the same scale.
func normalize(v float64) float64 {
	const max = 7.0 // tagMatch(1) + scopeSpecificity(3) + priority(1) + lexical(1) + recency(1) ceiling
	if v <= 0 {
		return 0
	}
	if v >= max {
		return 1
	}
	return v / max
}

// recencyScore decays from 1 (just created) toward 0 over 30 days.
func recencyScore(e domain.Entry) float64 {
	const halfLifeDays = 30.0
	age := daysSince(e.CreatedAt)
	if age <= 0 {
		return 1
	}
	decay := 1 - age/halfLifeDays
	if decay < 0 {
		return 0
	}
	return decay
}

func daysSince(t time.Time) float64 {
	return time.Since(t).Hours() / 24
}
