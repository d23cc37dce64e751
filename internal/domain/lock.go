package domain

import "time"

// FileLock is a named, time-bounded exclusive claim by an agent on a
// file path. Uniqueness is enforced on FilePath among active (non-expired)
// locks; a lock whose ExpiresAt is in the past is treated as absent by
// every read path.
type FileLock struct {
	FilePath   string    `json:"file_path"`
	OwnerAgent string    `json:"owner_agent_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Token      string    `json:"-"`
}

// Expired reports whether the lock's expiry has passed as of now.
func (l FileLock) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// LockHandle is returned to a successful acquirer; it carries the opaque
// token required for compare-and-delete release/extend.
type LockHandle struct {
	FilePath string `json:"file_path"`
	Owner    string `json:"owner_agent_id"`
	Token    string `json:"token"`
}

// AuditRecord is an append-only record of a single mutation.
type AuditRecord struct {
	ID            string         `json:"id"`
	Action        string         `json:"action"`
	EntryKind     EntryKind      `json:"entry_kind"`
	EntryID       string         `json:"entry_id"`
	Actor         string         `json:"actor"`
	Scope         ScopeRef       `json:"scope"`
	CorrelationID string         `json:"correlation_id"`
	Snapshot      map[string]any `json:"snapshot,omitempty"`
	Truncated     bool           `json:"truncated"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Conflict records that two writers updated the same entry within the
// optimistic concurrency window. It never blocks subsequent writes.
type Conflict struct {
	ID         string    `json:"id"`
	EntryID    string    `json:"entry_id"`
	VersionA   int       `json:"version_a"`
	VersionB   int       `json:"version_b"`
	DetectedAt time.Time `json:"detected_at"`
	Resolved   bool      `json:"resolved"`
	ResolvedBy string    `json:"resolved_by,omitempty"`
}

// EmbeddingRecord tracks whether a semantic vector exists for a given
// entry version in the vector store.
type EmbeddingRecord struct {
	EntryKind EntryKind `json:"entry_kind"`
	EntryID   string    `json:"entry_id"`
	VersionID int       `json:"version_id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	StoredAt  time.Time `json:"stored_at"`
}

// RetryJob tracks a failed embedding job awaiting a bounded number of
// backed-off retries, kept entirely in memory.
type RetryJob struct {
	EntryKind     EntryKind `json:"entry_kind"`
	EntryID       string    `json:"entry_id"`
	Attempt       int       `json:"attempt"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	LastError     string    `json:"last_error"`
	Failed        bool      `json:"failed"` // true once Attempt has exhausted the configured max retries
}
