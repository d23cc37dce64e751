// Package boltvector is the embedded VectorStore implementation: a
// single go.etcd.io/bbolt file with one bucket per entry kind, keys of
// "<entry_id>:<version_id>", values a little-endian float32 array.
// Search is a brute-force linear scan, acceptable at the corpus sizes a
// single-agent or small-team memory store holds; anything larger calls
// for swapping in a networked vector database behind the same
// interface.
package boltvector

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	bolt "go.etcd.io/bbolt"

	"github.com/agent-memory/agent-memory/internal/adapter/vector"
)

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	return &Store{db: db}, nil
}

func bucketName(entryKind string) []byte { return []byte("vec_" + entryKind) }

func rowKey(entryID string, versionID int) []byte {
	return []byte(entryID + ":" + strconv.Itoa(versionID))
}

func encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decode(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// Put stores vec under key.
func (s *Store) Put(ctx context.Context, key vector.Key, vec []float32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(key.EntryKind))
		if err != nil {
			return err
		}
		return b.Put(rowKey(key.EntryID, key.VersionID), encode(vec))
	})
}

// Get returns the vector stored under key.
func (s *Store) Get(ctx context.Context, key vector.Key) ([]float32, bool, error) {
	var out []float32
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(key.EntryKind))
		if b == nil {
			return nil
		}
		v := b.Get(rowKey(key.EntryID, key.VersionID))
		if v == nil {
			return nil
		}
		out = decode(v)
		found = true
		return nil
	})
	return out, found, err
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key vector.Key) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(key.EntryKind))
		if b == nil {
			return nil
		}
		return b.Delete(rowKey(key.EntryID, key.VersionID))
	})
}

// Search brute-force scans every vector in entryKind's bucket (or every
// bucket if entryKind is empty) and returns the topK closest by cosine
// similarity.
func (s *Store) Search(ctx context.Context, entryKind string, query []float32, topK int) ([]vector.Match, error) {
	var matches []vector.Match

	err := s.db.View(func(tx *bolt.Tx) error {
		scan := func(name []byte, b *bolt.Bucket) error {
			kind := strings.TrimPrefix(string(name), "vec_")
			return b.ForEach(func(k, v []byte) error {
				entryID, versionID := splitRowKey(k)
				score := cosine(query, decode(v))
				matches = append(matches, vector.Match{
					Key:   vector.Key{EntryKind: kind, EntryID: entryID, VersionID: versionID},
					Score: score,
				})
				return nil
			})
		}

		if entryKind != "" {
			b := tx.Bucket(bucketName(entryKind))
			if b == nil {
				return nil
			}
			return scan(bucketName(entryKind), b)
		}
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			return scan(name, b)
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func splitRowKey(k []byte) (string, int) {
	s := string(k)
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return s, 0
	}
	versionID, _ := strconv.Atoi(s[idx+1:])
	return s[:idx], versionID
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Close releases the file handle.
func (s *Store) Close() error { return s.db.Close() }
