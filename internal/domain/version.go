package domain

import "time"

// Version is an append-only, monotonically numbered snapshot of an
// entry's payload. Versions are never mutated or deleted once written.
type Version struct {
	EntryID       string         `json:"entry_id"`
	Kind          EntryKind      `json:"kind"`
	VersionNumber int            `json:"version_number"`
	Payload       map[string]any `json:"payload"`
	ChangeReason  string         `json:"change_reason"`
	CreatedBy     string         `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Tag is a globally unique name with optional presentation metadata.
type Tag struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// TagAttachment is the many-to-many link between an entry and a tag,
// keyed by (entry kind, entry id, tag id).
type TagAttachment struct {
	EntryKind EntryKind `json:"entry_kind"`
	EntryID   string    `json:"entry_id"`
	TagID     string    `json:"tag_id"`
}

// RelationType enumerates the closed set of directed edge types between
// entries.
type RelationType string

const (
	RelationAppliesTo    RelationType = "applies_to"
	RelationDependsOn    RelationType = "depends_on"
	RelationConflictsWith RelationType = "conflicts_with"
	RelationRelatedTo    RelationType = "related_to"
	RelationParentTask   RelationType = "parent_task"
	RelationSubtaskOf    RelationType = "subtask_of"
)

func (t RelationType) Valid() bool {
	switch t {
	case RelationAppliesTo, RelationDependsOn, RelationConflictsWith,
		RelationRelatedTo, RelationParentTask, RelationSubtaskOf:
		return true
	}
	return false
}

// Relation is a directed, typed edge between two entries.
type Relation struct {
	ID         string         `json:"id"`
	SourceKind EntryKind      `json:"source_kind"`
	SourceID   string         `json:"source_id"`
	TargetKind EntryKind      `json:"target_kind"`
	TargetID   string         `json:"target_id"`
	Type       RelationType   `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// GraphNode mirrors exactly one entry, sharing its scope.
type GraphNode struct {
	ID    string    `json:"id"`
	Kind  EntryKind `json:"kind"`
	Scope ScopeRef  `json:"scope"`
}

// GraphEdge mirrors a Relation with the same type.
type GraphEdge struct {
	ID         string       `json:"id"`
	SourceNode string       `json:"source_node"`
	TargetNode string       `json:"target_node"`
	Type       RelationType `json:"type"`
}
