package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Source identifies which store produced a record.
type Source string

// Record sources.
const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Reserved field names. They live on Record itself, never in Fields.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// TimeLayout renders timestamps at a fixed width so their text form
// sorts chronologically. Parsing also accepts plain RFC3339 strings.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in UTC with TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// IsReserved reports whether name is one of the record-level fields.
func IsReserved(name string) bool {
	return name == FieldID || name == FieldCreatedAt || name == FieldUpdatedAt
}

// Record is one instance of an entity. Fields holds the entity-specific
// values, untyped from the repository's point of view.
type Record struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Fields    map[string]any

	// Source is the store the record was read from. It is not persisted.
	Source Source
}

// Value returns the value of a reserved or entity field and whether it
// is present.
func (r Record) Value(field string) (any, bool) {
	switch field {
	case FieldID:
		return r.ID, r.ID != ""
	case FieldCreatedAt:
		return r.CreatedAt, !r.CreatedAt.IsZero()
	case FieldUpdatedAt:
		return r.UpdatedAt, !r.UpdatedAt.IsZero()
	}
	v, ok := r.Fields[field]
	return v, ok
}

// Text returns the string representation of a field used for filtering
// and sorting. Missing fields and nil values yield "".
func (r Record) Text(field string) string {
	v, ok := r.Value(field)
	if !ok {
		return ""
	}
	return TextOf(v)
}

// TextOf renders a scalar the way Record.Text does. Numbers use their
// shortest decimal form so 7, int64(7) and 7.0 all render as "7".
func TextOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case time.Time:
		return FormatTime(x)
	case fmt.Stringer:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// Clone returns a copy whose Fields map can be modified independently.
func (r Record) Clone() Record {
	out := r
	out.Fields = make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	return out
}

// Merge returns a copy with fields overlaid on the existing ones.
// Reserved names in fields are ignored; timestamps are left to the caller.
func (r Record) Merge(fields map[string]any) Record {
	out := r.Clone()
	for k, v := range fields {
		if IsReserved(k) {
			continue
		}
		out.Fields[k] = v
	}
	return out
}

// WithSource returns a copy of the record tagged with src.
func (r Record) WithSource(src Source) Record {
	r.Source = src
	return r
}

// Map returns the flat representation: reserved fields plus entity fields.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		m[k] = v
	}
	m[FieldID] = r.ID
	if !r.CreatedAt.IsZero() {
		m[FieldCreatedAt] = FormatTime(r.CreatedAt)
	}
	if !r.UpdatedAt.IsZero() {
		m[FieldUpdatedAt] = FormatTime(r.UpdatedAt)
	}
	return m
}

// MarshalJSON encodes the record as one flat JSON object. Source is
// deliberately left out so stores never persist provenance.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// UnmarshalJSON decodes a flat JSON object produced by MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	rec, err := RecordFromMap(m)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// RecordFromMap builds a Record from its flat representation. Timestamps
// may be time.Time values or RFC3339 strings.
func RecordFromMap(m map[string]any) (Record, error) {
	rec := Record{Fields: make(map[string]any, len(m))}
	for k, v := range m {
		switch k {
		case FieldID:
			rec.ID = TextOf(v)
		case FieldCreatedAt:
			t, err := parseTime(v)
			if err != nil {
				return Record{}, fmt.Errorf("parsing created_at: %w", err)
			}
			rec.CreatedAt = t
		case FieldUpdatedAt:
			t, err := parseTime(v)
			if err != nil {
				return Record{}, fmt.Errorf("parsing updated_at: %w", err)
			}
			rec.UpdatedAt = t
		default:
			rec.Fields[k] = v
		}
	}
	return rec, nil
}

func parseTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return x, nil
	case string:
		if x == "" {
			return time.Time{}, nil
		}
		return time.Parse(time.RFC3339Nano, x)
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}
