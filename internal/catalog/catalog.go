// Package catalog holds the entity schemas of the collection back office
// and resolves an entity name to its reconciliation category.
package catalog

import (
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

// Catalog maps entity names to schemas. It is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	schemas map[string]types.Schema
}

// New returns a catalog holding the given schemas.
func New(schemas ...types.Schema) *Catalog {
	c := &Catalog{schemas: make(map[string]types.Schema, len(schemas))}
	for _, s := range schemas {
		c.schemas[s.Name] = s
	}
	return c
}

// Standard returns a catalog of the standard back-office entities.
func Standard() *Catalog {
	return New(standardSchemas()...)
}

// Lookup returns the schema for entity or types.ErrUnknownEntity.
func (c *Catalog) Lookup(entity string) (types.Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[entity]
	if !ok {
		return types.Schema{}, fmt.Errorf("%w: %q", types.ErrUnknownEntity, entity)
	}
	return s, nil
}

// Names returns the registered entity names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.schemas))
	for n := range c.schemas {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Put registers or replaces a schema.
func (c *Catalog) Put(s types.Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas[s.Name] = s
}

// overrideFile is the structure of entities.yaml.
type overrideFile struct {
	Entities map[string]entityOverride `yaml:"entities"`
}

type entityOverride struct {
	Category *string          `yaml:"category"`
	Fallback *bool            `yaml:"fallback"`
	Fields   []types.FieldSpec `yaml:"fields"`
}

// ApplyOverrides reads an entities.yaml file and applies its category,
// fallback and field overrides. Entities not yet in the catalog are added
// as remote-primary with fallback. A missing file is not an error.
func (c *Catalog) ApplyOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return c.applyOverrides(data)
}

func (c *Catalog) applyOverrides(data []byte) error {
	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing entity overrides: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for name, o := range f.Entities {
		s, ok := c.schemas[name]
		if !ok {
			s = types.Schema{Name: name, Category: types.CategoryRemotePrimary, Fallback: true}
		}
		if o.Category != nil {
			cat := types.Category(*o.Category)
			if !types.IsValidCategory(cat) {
				return fmt.Errorf("entity %q: unknown category %q", name, *o.Category)
			}
			s.Category = cat
		}
		if o.Fallback != nil {
			s.Fallback = *o.Fallback
		}
		if len(o.Fields) > 0 {
			s.Fields = o.Fields
		}
		c.schemas[name] = s
	}
	return nil
}
