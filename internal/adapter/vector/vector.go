// Package vector defines the VectorStore abstraction used by the
// embedding service and the semantic-rank stage of the query pipeline.
// Its one implementation, boltvector, is an embedded key/value store
// (go.etcd.io/bbolt) keyed on (entry kind, entry id, version) so a future
// networked vector database can be swapped in without touching the
// embedding service.
package vector

import "context"

// Key identifies one stored vector.
type Key struct {
	EntryKind string
	EntryID   string
	VersionID int
}

// Match is one nearest-neighbor search result.
type Match struct {
	Key   Key
	Score float64 // cosine similarity, higher is closer
}

// Store is the narrow interface the embedding service and query
// pipeline's semantic-rank stage depend on.
type Store interface {
	// Put stores vec under key, overwriting any prior vector there.
	Put(ctx context.Context, key Key, vec []float32) error

	// Get returns the vector stored under key, ok=false if absent.
	Get(ctx context.Context, key Key) (vec []float32, ok bool, err error)

	// Delete removes key, no error if absent.
	Delete(ctx context.Context, key Key) error

	// Search returns the topK closest vectors to query by cosine
	// similarity, restricted to entryKind if non-empty.
	Search(ctx context.Context, entryKind string, query []float32, topK int) ([]Match, error)

	// Close releases the underlying file handle.
	Close() error
}
