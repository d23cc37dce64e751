package query

import (
	"context"
	"strings"

	"github.com/agent-memory/agent-memory/internal/domain"
)

// fts runs a case-insensitive token-prefix search over each fetched
// entry's (name, content/title, rationale) text when Request.Search is
// non-empty. There is no dialect-portable secondary full-text index
// shared across sqlite and postgres (FTS5 virtual tables and tsvector
// columns are not interchangeable), so this always takes the in-memory
// substring/token-prefix path the spec names as the fallback — see
// DESIGN.md.
func (p *Pipeline) fts(_ context.Context, pc *PCtx) error {
	search := strings.TrimSpace(pc.Request.Search)
	if search == "" {
		return nil
	}
	tokens := strings.Fields(strings.ToLower(search))
	if len(tokens) == 0 {
		return nil
	}

	for kind, entries := range pc.Entries {
		set := make(map[string]float64)
		for _, e := range entries {
			text := strings.ToLower(searchableText(e))
			words := strings.Fields(text)

			matched := 0
			for _, tok := range tokens {
				if tokenPrefixMatch(tok, words) {
					matched++
				}
			}
			if matched == 0 {
				continue
			}
			set[e.ID] = float64(matched) / float64(len(tokens))
		}
		pc.TypeSets[kind] = set
	}
	return nil
}

func tokenPrefixMatch(tok string, words []string) bool {
	for _, w := range words {
		if strings.HasPrefix(w, tok) {
			return true
		}
	}
	return false
}

func searchableText(e domain.Entry) string {
	var b strings.Builder
	b.WriteString(e.Name)
	switch e.Kind {
	case domain.KindGuideline:
		b.WriteByte(' ')
		b.WriteString(str(e.Payload["content"]))
		b.WriteByte(' ')
		b.WriteString(str(e.Payload["rationale"]))
	case domain.KindKnowledge:
		b.WriteByte(' ')
		b.WriteString(str(e.Payload["content"]))
	case domain.KindTool:
		b.WriteByte(' ')
		b.WriteString(str(e.Payload["description"]))
	}
	return b.String()
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
