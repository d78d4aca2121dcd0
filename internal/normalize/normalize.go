// Package normalize holds the canonical forms used for storage and lookups.
package normalize

import "strings"

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// DisplayName trims a display name and collapses inner runs of whitespace.
func DisplayName(n string) string {
	return strings.Join(strings.Fields(n), " ")
}

// MatchesSearch reports whether name contains term, ignoring case and
// surrounding whitespace. An empty term matches everything.
func MatchesSearch(name, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), term)
}
