// Package cursor encodes and verifies opaque pagination cursors. A
// cursor is a compact HMAC-SHA256 JWT carrying the offset to resume
// from and a hash of the filter/scope that produced it, so a cursor
// minted for one query can never be replayed against a different one.
package cursor

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agent-memory/agent-memory/internal/domain/apperror"
)

// DefaultMaxEncodedSize bounds the wire size of a cursor string when the
// caller does not supply a configured limit (internal/config's
// cursor.max_bytes); anything larger is rejected before a single byte
// of it is parsed.
const DefaultMaxEncodedSize = 2048

// claims is the private claims set carried by a cursor token. Kept
// minimal: nothing here is meant to be read by a client, only
// round-tripped.
type claims struct {
	FilterHash string `json:"h"`
	Offset     int    `json:"offs"`
	jwt.RegisteredClaims
}

// Codec mints and verifies cursors scoped to a secret key.
type Codec struct {
	secret   []byte
	maxBytes int
}

// New constructs a Codec. secret must be non-empty and non-whitespace;
// callers load it from configuration at startup. maxBytes <= 0 falls
// back to DefaultMaxEncodedSize.
func New(secret string, maxBytes int) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, apperror.New(apperror.CodeMissingField, "cursor signing secret must not be empty")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxEncodedSize
	}
	return &Codec{secret: []byte(secret), maxBytes: maxBytes}, nil
}

// Encode mints a cursor resuming at offset for the query identified by
// filterHash (a stable hash of kinds/scope/filters/search/related_to/limit).
func (c *Codec) Encode(filterHash string, offset int) (string, error) {
	if offset < 0 {
		return "", apperror.New(apperror.CodeOutOfRange, "cursor offset must not be negative")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		FilterHash: filterHash,
		Offset:     offset,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now().UTC()),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", apperror.Wrap(apperror.CodeInvalidCursor, "failed to sign cursor", err)
	}
	return signed, nil
}

// Decode verifies raw against filterHash and returns the resume offset.
// A cursor minted for a different query (different filterHash), an
// oversized or malformed token, or a bad signature all return
// apperror.CodeInvalidCursor.
func (c *Codec) Decode(raw, filterHash string) (int, error) {
	if len(raw) > c.maxBytes {
		return 0, apperror.New(apperror.CodeInvalidCursor, "cursor exceeds maximum size")
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperror.New(apperror.CodeInvalidCursor, "unexpected cursor signing method")
		}
		return c.secret, nil
	})
	if err != nil {
		return 0, apperror.Wrap(apperror.CodeInvalidCursor, "invalid cursor", err)
	}
	if parsed.FilterHash != filterHash {
		return 0, apperror.New(apperror.CodeInvalidCursor, "cursor does not match this query")
	}
	if parsed.Offset < 0 {
		return 0, apperror.New(apperror.CodeInvalidCursor, "cursor offset must not be negative")
	}
	return parsed.Offset, nil
}
