package types

import (
	"fmt"
	"slices"
)

// Category selects the reconciliation strategy applied to an entity.
type Category string

// Entity categories.
const (
	// CategoryRemotePrimary entities are authoritative remotely; the local
	// snapshot is consulted only as a read fallback.
	CategoryRemotePrimary Category = "remote-primary"
	// CategoryLocalOnly entities never touch the remote store.
	CategoryLocalOnly Category = "local-only"
	// CategoryHybrid entities merge remote and local reads; new records
	// are written locally.
	CategoryHybrid Category = "hybrid"
)

// validCategories is the set of recognized categories.
var validCategories = map[Category]bool{
	CategoryRemotePrimary: true,
	CategoryLocalOnly:     true,
	CategoryHybrid:        true,
}

// IsValidCategory reports whether c is a recognized category.
func IsValidCategory(c Category) bool {
	return validCategories[c]
}

// Field types of the advisory schema.
const (
	FieldTypeString    = "string"
	FieldTypeNumber    = "number"
	FieldTypeTimestamp = "timestamp"
	FieldTypeEnum      = "enum"
	FieldTypeBool      = "bool"
)

// FieldSpec declares one field of an entity. It is used for validation
// and formatting only; stores never enforce it.
type FieldSpec struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Required bool     `yaml:"required"`
	Values   []string `yaml:"values,omitempty"` // allowed values for enum fields
}

// Schema describes an entity: its category, whether remote reads may fall
// back to the local snapshot, and its declared fields.
type Schema struct {
	Name     string
	Category Category
	Fallback bool
	Fields   []FieldSpec
}

// Field returns the FieldSpec declared for name.
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// ValidateCreate checks the fields supplied for a new record: required
// fields must be present and non-empty, reserved fields must be absent,
// and declared fields must have the right shape.
func (s Schema) ValidateCreate(fields map[string]any) error {
	for k := range fields {
		if IsReserved(k) {
			return fmt.Errorf("%w: field %q is assigned by the repository", ErrValidation, k)
		}
	}
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		v, ok := fields[f.Name]
		if !ok || v == nil || TextOf(v) == "" {
			return fmt.Errorf("%w: %s: field %q is required", ErrValidation, s.Name, f.Name)
		}
	}
	return s.validateShapes(fields)
}

// ValidateUpdate checks a partial field set: id may not change and
// declared fields must have the right shape.
func (s Schema) ValidateUpdate(fields map[string]any) error {
	for k := range fields {
		if k == FieldID || k == FieldCreatedAt {
			return fmt.Errorf("%w: field %q is immutable", ErrValidation, k)
		}
	}
	return s.validateShapes(fields)
}

func (s Schema) validateShapes(fields map[string]any) error {
	for name, v := range fields {
		f, ok := s.Field(name)
		if !ok || v == nil {
			continue
		}
		switch f.Type {
		case FieldTypeNumber:
			if !isNumber(v) {
				return fmt.Errorf("%w: %s: field %q must be a number, got %T", ErrValidation, s.Name, name, v)
			}
		case FieldTypeEnum:
			if len(f.Values) > 0 && !slices.Contains(f.Values, TextOf(v)) {
				return fmt.Errorf("%w: %s: field %q must be one of %v", ErrValidation, s.Name, name, f.Values)
			}
		case FieldTypeBool:
			if _, ok := v.(bool); !ok {
				return fmt.Errorf("%w: %s: field %q must be a bool, got %T", ErrValidation, s.Name, name, v)
			}
		}
	}
	return nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, uint, uint32, uint64, float32, float64:
		return true
	}
	return false
}
