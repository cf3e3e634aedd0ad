// Package query applies filters and ordering to reconciled records.
// Both operate on the string form of field values (types.TextOf), so a
// filter value of "7" matches a stored number 7.
package query

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

// ValidateFilter checks that every filter value is a scalar or a slice of
// scalars. It returns types.ErrInvalidFilter otherwise.
func ValidateFilter(filter types.Filter) error {
	for field, want := range filter {
		if want == nil {
			continue
		}
		switch reflect.TypeOf(want).Kind() {
		case reflect.Map, reflect.Struct, reflect.Func, reflect.Chan, reflect.Pointer:
			if _, ok := want.(fmt.Stringer); ok {
				continue
			}
			return fmt.Errorf("%w: field %q has %T", types.ErrInvalidFilter, field, want)
		}
	}
	return nil
}

// Match reports whether rec satisfies every condition in filter.
// A slice value is a membership test; anything else is an exact match.
func Match(rec types.Record, filter types.Filter) bool {
	for field, want := range filter {
		got := rec.Text(field)
		if set, ok := asSet(want); ok {
			if !slices.Contains(set, got) {
				return false
			}
			continue
		}
		if got != types.TextOf(want) {
			return false
		}
	}
	return true
}

// Apply returns the records matching filter, preserving input order.
func Apply(records []types.Record, filter types.Filter) []types.Record {
	if len(filter) == 0 {
		return records
	}
	out := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if Match(rec, filter) {
			out = append(out, rec)
		}
	}
	return out
}

// Sort orders records in place by the field named in orderBy, comparing
// string representations lexicographically. Missing fields compare as "".
// The sort is stable, so equal keys keep their input order. An empty
// orderBy leaves the slice untouched.
func Sort(records []types.Record, orderBy types.OrderBy) {
	field := orderBy.Field()
	if field == "" {
		return
	}
	desc := orderBy.Descending()
	slices.SortStableFunc(records, func(a, b types.Record) int {
		c := strings.Compare(a.Text(field), b.Text(field))
		if desc {
			return -c
		}
		return c
	})
}

// asSet converts slice filter values into their string forms.
func asSet(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []any:
		out := make([]string, len(x))
		for i, e := range x {
			out[i] = types.TextOf(e)
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]string, rv.Len())
	for i := range rv.Len() {
		out[i] = types.TextOf(rv.Index(i).Interface())
	}
	return out, true
}
