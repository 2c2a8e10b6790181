// Package search narrows an in-memory record list by a free-text query.
package search

import "strings"

// Searchable exposes the values a record is matched on.
type Searchable interface {
	SearchText() []string
}

// Filter returns the records for which the case-folded query is a
// substring of at least one searched value. The query is not trimmed; only
// the empty query returns every record. Order is preserved and records is
// never modified.
func Filter[T Searchable](records []T, query string) []T {
	q := strings.ToLower(query)
	out := make([]T, 0, len(records))
	for _, r := range records {
		if q == "" || Matches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether r matches an already case-folded query.
func Matches(r Searchable, foldedQuery string) bool {
	for _, v := range r.SearchText() {
		if strings.Contains(strings.ToLower(v), foldedQuery) {
			return true
		}
	}
	return false
}
