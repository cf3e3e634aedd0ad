// Package repository implements the uniform per-entity CRUD API. It
// validates input, assigns ids and timestamps, defers source selection to
// the reconciliation policy, and runs post-create hooks.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/casebook/internal/catalog"
	"github.com/mesh-intelligence/casebook/internal/metrics"
	"github.com/mesh-intelligence/casebook/internal/query"
	"github.com/mesh-intelligence/casebook/internal/reconcile"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

var _ types.Repository = (*Repository)(nil)

// LocalIDPrefix marks ids assigned to records whose create target is the
// local store.
const LocalIDPrefix = "local-"

// Hook runs after a successful Create. Its error is logged and counted,
// never returned to the caller of Create.
type Hook func(ctx context.Context, repo types.Repository, created types.Record) error

type namedHook struct {
	name string
	fn   Hook
}

// Repository is the facade over the catalog and the reconciliation policy.
type Repository struct {
	catalog *catalog.Catalog
	policy  *reconcile.Policy
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	hooks   map[string][]namedHook
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger for hook failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// WithMetrics sets the collectors hook failures are counted on.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Repository) { r.metrics = m }
}

// WithClock replaces time.Now for id and timestamp assignment.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithHook registers a post-create hook for entity. Hooks run in
// registration order.
func WithHook(entity, name string, fn Hook) Option {
	return func(r *Repository) {
		r.hooks[entity] = append(r.hooks[entity], namedHook{name: name, fn: fn})
	}
}

// New returns a repository over cat and policy.
func New(cat *catalog.Catalog, policy *reconcile.Policy, opts ...Option) *Repository {
	r := &Repository{
		catalog: cat,
		policy:  policy,
		logger:  slog.Default(),
		now:     time.Now,
		hooks:   map[string][]namedHook{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Entities lists the entity names the repository serves.
func (r *Repository) Entities() []string {
	return r.catalog.Names()
}

// Schema returns the schema of entity.
func (r *Repository) Schema(entity string) (types.Schema, error) {
	return r.catalog.Lookup(entity)
}

// List returns every record of the entity, sorted by orderBy when set.
func (r *Repository) List(ctx context.Context, entity string, orderBy types.OrderBy) ([]types.Record, error) {
	return r.Filter(ctx, entity, nil, orderBy)
}

// Filter returns the records matching every condition of filter. A slice
// value matches any of its members.
func (r *Repository) Filter(ctx context.Context, entity string, filter types.Filter, orderBy types.OrderBy) ([]types.Record, error) {
	schema, err := r.catalog.Lookup(entity)
	if err != nil {
		return nil, err
	}
	if err := query.ValidateFilter(filter); err != nil {
		return nil, err
	}
	records, err := r.policy.List(ctx, schema, filter)
	if err != nil {
		return nil, err
	}
	records = query.Apply(records, filter)
	query.Sort(records, orderBy)
	return records, nil
}

// Get returns the record with id, or ErrNotFound.
func (r *Repository) Get(ctx context.Context, entity, id string) (types.Record, error) {
	schema, err := r.catalog.Lookup(entity)
	if err != nil {
		return types.Record{}, err
	}
	if id == "" {
		return types.Record{}, types.ErrInvalidID
	}
	return r.policy.Get(ctx, schema, id)
}

// Create validates fields, assigns id and timestamps, writes the record
// and runs the entity's hooks.
func (r *Repository) Create(ctx context.Context, entity string, fields map[string]any) (types.Record, error) {
	schema, err := r.catalog.Lookup(entity)
	if err != nil {
		return types.Record{}, err
	}
	if err := schema.ValidateCreate(fields); err != nil {
		return types.Record{}, err
	}
	rec, err := r.newRecord(reconcile.CreateTarget(schema), fields)
	if err != nil {
		return types.Record{}, err
	}

	created, err := r.policy.Create(ctx, schema, rec)
	if err != nil {
		return types.Record{}, err
	}
	r.runHooks(ctx, entity, created)
	return created, nil
}

func (r *Repository) newRecord(target types.Source, fields map[string]any) (types.Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return types.Record{}, fmt.Errorf("generating UUID v7: %w", err)
	}
	rid := id.String()
	if target == types.SourceLocal {
		rid = LocalIDPrefix + rid
	}
	copied := maps.Clone(fields)
	if copied == nil {
		copied = map[string]any{}
	}
	now := r.now().UTC()
	return types.Record{ID: rid, CreatedAt: now, UpdatedAt: now, Fields: copied}, nil
}

func (r *Repository) runHooks(ctx context.Context, entity string, created types.Record) {
	for _, h := range r.hooks[entity] {
		if err := h.fn(ctx, r, created.Clone()); err != nil {
			r.logger.WarnContext(ctx, "post-create hook failed",
				"entity", entity, "hook", h.name, "id", created.ID, "error", err)
			r.metrics.HookFailure(entity, h.name)
		}
	}
}

// Update merges fields into the existing record and refreshes updated_at.
func (r *Repository) Update(ctx context.Context, entity, id string, fields map[string]any) (types.Record, error) {
	schema, err := r.catalog.Lookup(entity)
	if err != nil {
		return types.Record{}, err
	}
	if id == "" {
		return types.Record{}, types.ErrInvalidID
	}
	if err := schema.ValidateUpdate(fields); err != nil {
		return types.Record{}, err
	}
	return r.policy.Update(ctx, schema, id, fields, r.now().UTC())
}

// Delete removes the record. Deleting a missing id succeeds.
func (r *Repository) Delete(ctx context.Context, entity, id string) error {
	schema, err := r.catalog.Lookup(entity)
	if err != nil {
		return err
	}
	if id == "" {
		return types.ErrInvalidID
	}
	return r.policy.Delete(ctx, schema, id)
}

// BulkCreate validates every entry, then writes them to the remote store
// as one batch. Hooks do not run for bulk imports.
func (r *Repository) BulkCreate(ctx context.Context, entity string, fields []map[string]any) ([]types.Record, error) {
	schema, err := r.catalog.Lookup(entity)
	if err != nil {
		return nil, err
	}
	records := make([]types.Record, 0, len(fields))
	for i, f := range fields {
		if err := schema.ValidateCreate(f); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		rec, err := r.newRecord(types.SourceRemote, f)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return r.policy.BulkCreate(ctx, schema, records)
}

// Snapshot copies a remote-primary entity's remote records into the local
// store for later fallback reads.
func (r *Repository) Snapshot(ctx context.Context, entity string) (int, error) {
	schema, err := r.catalog.Lookup(entity)
	if err != nil {
		return 0, err
	}
	return r.policy.Snapshot(ctx, schema)
}
