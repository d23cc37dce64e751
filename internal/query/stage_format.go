package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/agent-memory/agent-memory/internal/domain"
)

// FormattedEntry is one projected result row; which of Payload/Summary
// is populated depends on Request.Shape.
type FormattedEntry struct {
	Header  domain.Header  `json:"header"`
	Score   float64        `json:"score"`
	Tags    []domain.Tag   `json:"tags,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Summary string         `json:"summary,omitempty"`
}

// format merges the per-kind sorted results into one list, applies
// cursor-based pagination, and projects each survivor into the
// requested shape.
func (p *Pipeline) format(_ context.Context, pc *PCtx) ([]FormattedEntry, error) {
	combined := make([]domain.Entry, 0)
	for _, entries := range pc.Entries {
		combined = append(combined, entries...)
	}
	sort.SliceStable(combined, func(i, j int) bool {
		return pc.Scores[combined[i].ID] > pc.Scores[combined[j].ID]
	})

	pc.Meta.TotalEstimate = len(combined)

	offset := 0
	filterHash := pc.Request.FilterHash()
	if pc.Request.Cursor != "" && p.deps.Cursor != nil {
		decoded, err := p.deps.Cursor.Decode(pc.Request.Cursor, filterHash)
		if err != nil {
			return nil, err
		}
		offset = decoded
	}
	if offset > len(combined) {
		offset = len(combined)
	}

	limit := pc.Request.Limit
	end := len(combined)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := combined[offset:end]

	if end < len(combined) {
		p.markTruncated(pc, "format")
		if p.deps.Cursor != nil {
			next, err := p.deps.Cursor.Encode(filterHash, end)
			if err == nil {
				pc.Meta.NextCursor = next
			}
		}
	}

	out := make([]FormattedEntry, 0, len(page))
	for _, e := range page {
		out = append(out, projectEntry(e, pc.Scores[e.ID], pc.TagMap[e.ID], pc.Request.Shape))
	}
	return out, nil
}

func projectEntry(e domain.Entry, score float64, tags []domain.Tag, shape Shape) FormattedEntry {
	fe := FormattedEntry{Header: e.Header, Score: score, Tags: tags}
	switch shape {
	case ShapeCompact:
		fe.Summary = e.Name
	case ShapeSummary:
		fe.Summary = summarize(e)
	default: // ShapeFull and unset default to full
		fe.Payload = e.Payload
	}
	return fe
}

func summarize(e domain.Entry) string {
	text := searchableText(e)
	const maxLen = 200
	if len(text) <= maxLen {
		return text
	}
	return fmt.Sprintf("%s…", text[:maxLen])
}
