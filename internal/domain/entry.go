package domain

import "time"

// EntryKind is the tagged variant discriminating the three entry kinds.
// Deep inheritance is deliberately avoided (see DESIGN.md "Deep
// inheritance"): each kind is an independent payload type, and the three
// share only the capability surface exposed by Header.
type EntryKind string

const (
	KindGuideline EntryKind = "guideline"
	KindKnowledge EntryKind = "knowledge"
	KindTool      EntryKind = "tool"
)

func (k EntryKind) Valid() bool {
	switch k {
	case KindGuideline, KindKnowledge, KindTool:
		return true
	}
	return false
}

// Header is the common attribute surface shared by every entry kind:
// identify, scope, head_version, active, payload_snapshot.
type Header struct {
	ID          string    `json:"id"`
	Kind        EntryKind `json:"kind"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Scope       ScopeRef  `json:"scope"`
	Priority    int       `json:"priority,omitempty"`
	TagIDs      []string  `json:"tag_ids,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
	HeadVersion int       `json:"head_version"`
}

// GuidelinePayload is the kind-specific payload carried on a version
// record for KindGuideline. Critical/Severity/TriggerPatterns/
// SuggestedAction back the verification service: a guideline marked
// Critical participates in the trigger-pattern walk over a proposed
// action; the rest are unused by any other path.
type GuidelinePayload struct {
	Content         string              `json:"content"`
	Rationale       string              `json:"rationale"`
	Examples        map[string][]string `json:"examples,omitempty"` // "good"/"bad" -> []string
	Critical        bool                `json:"critical,omitempty"`
	Severity        string              `json:"severity,omitempty"` // "warn" or "block"
	TriggerPatterns []string            `json:"trigger_patterns,omitempty"`
	SuggestedAction string              `json:"suggested_action,omitempty"`
}

// KnowledgePayload is the kind-specific payload for KindKnowledge.
type KnowledgePayload struct {
	Content     string     `json:"content"`
	Source      string     `json:"source"`
	Confidence  float64    `json:"confidence"` // 0..1
	ValidFrom   *time.Time `json:"valid_from,omitempty"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
}

// ToolPayload is the kind-specific payload for KindTool.
type ToolPayload struct {
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Examples    []string       `json:"examples,omitempty"`
	Constraints string         `json:"constraints,omitempty"`
}

// Entry is the full, assembled view returned by repositories: the header
// plus the head version's payload, kept as a raw map so the generic
// repository core does not need a type switch to transport it.
type Entry struct {
	Header
	Payload map[string]any `json:"payload"`
}

// TextFingerprint extracts the text used for full-text search and for
// embedding, per the per-kind rule of spec §4.7: guidelines use
// content+rationale, knowledge uses title (name)+content, tools use
// name+description.
func (e Entry) TextFingerprint() string {
	switch e.Kind {
	case KindGuideline:
		return str(e.Payload["content"]) + " " + str(e.Payload["rationale"])
	case KindKnowledge:
		return e.Name + " " + str(e.Payload["content"])
	case KindTool:
		return e.Name + " " + str(e.Payload["description"])
	default:
		return e.Name
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
