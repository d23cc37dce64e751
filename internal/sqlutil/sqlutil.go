// Package sqlutil holds the handful of helpers repositories need to stay
// dialect-agnostic: every repository writes its SQL with "?" positional
// placeholders and calls Rewrite to translate them to "$1, $2, ..." when
// running against postgres. Grounded on the teacher's query builder,
// which held the same kind of safe, parameterized construction this
// package centralizes instead of duplicating per repository.
package sqlutil

import "strings"

// Placeholder is the subset of storage.Adapter this package depends on,
// kept narrow to avoid an import cycle with internal/adapter/storage.
type Placeholder interface {
	Placeholder(n int) string
}

// Rewrite replaces each "?" in query, left to right, with db.Placeholder(i)
// for 1-based index i. A no-op for adapters whose Placeholder returns "?".
func Rewrite(db Placeholder, query string) string {
	if db.Placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(db.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
