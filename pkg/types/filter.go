package types

import "strings"

// Filter maps a field name to either a scalar (exact match) or a slice of
// scalars (membership). All conditions must hold for a record to match.
type Filter map[string]any

// OrderBy names the sort field. A leading "-" sorts descending.
// The zero value leaves the order untouched.
type OrderBy string

// Field returns the field name without the descent marker.
func (o OrderBy) Field() string {
	return strings.TrimPrefix(string(o), "-")
}

// Descending reports whether the order carries the descent marker.
func (o OrderBy) Descending() bool {
	return strings.HasPrefix(string(o), "-")
}
