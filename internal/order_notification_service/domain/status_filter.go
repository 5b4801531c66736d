package domain

import (
	"strings"
)

// StatusFilter decides whether an order status is "awaiting attention".
// It is the only place that decision is made; the change feed and the
// pending query both go through it.
//
// A status matches a term when, after normalization, it equals the term or
// contains it. The containment rule is deliberately loose because upstream
// statuses are free text ("Pending Payment", "new-order").
type StatusFilter struct {
	terms []string
}

// NewStatusFilter normalizes and de-duplicates terms. Blank terms are ignored.
func NewStatusFilter(terms []string) StatusFilter {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		n := NormalizeStatus(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return StatusFilter{terms: out}
}

// Terms returns the normalized terms.
func (f StatusFilter) Terms() []string {
	out := make([]string, len(f.terms))
	copy(out, f.terms)
	return out
}

// Matches reports whether status is awaiting attention.
func (f StatusFilter) Matches(status string) bool {
	n := NormalizeStatus(status)
	if n == "" {
		return false
	}
	for _, term := range f.terms {
		if n == term || strings.Contains(n, term) {
			return true
		}
	}
	return false
}

// NormalizeStatus lower-cases, trims and collapses separators (whitespace,
// underscore, hyphen) into single spaces.
func NormalizeStatus(status string) string {
	fields := strings.FieldsFunc(strings.ToLower(status), func(r rune) bool {
		switch r {
		case '_', '-', ' ', '\t', '\n', '\r':
			return true
		}
		return false
	})
	return strings.Join(fields, " ")
}
