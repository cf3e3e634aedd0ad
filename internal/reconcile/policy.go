// Package reconcile decides, per entity category, which store answers a
// read or takes a write, and merges results for hybrid entities.
//
//	category        read                         write            delete
//	remote-primary  remote, local on outage*     remote           remote
//	local-only      local                        local            local
//	hybrid          remote ∪ local, remote wins  local (create)   both
//
// (*) only when the entity's schema enables fallback.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mesh-intelligence/casebook/internal/metrics"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

// Policy routes operations between a remote and a local store.
type Policy struct {
	local   types.RecordStore
	remote  types.RemoteStore
	logger  *slog.Logger
	metrics *metrics.Metrics

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option configures a Policy.
type Option func(*Policy)

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *slog.Logger) Option {
	return func(p *Policy) { p.logger = l }
}

// WithMetrics sets the collectors for remote calls and fallbacks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Policy) { p.metrics = m }
}

// New returns a policy over the given stores.
func New(local types.RecordStore, remote types.RemoteStore, opts ...Option) *Policy {
	p := &Policy{
		local:  local,
		remote: remote,
		logger: slog.Default(),
		locks:  map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreateTarget returns the store a new record of schema is written to.
func CreateTarget(schema types.Schema) types.Source {
	if schema.Category == types.CategoryRemotePrimary {
		return types.SourceRemote
	}
	return types.SourceLocal
}

// lock serializes local writes for one entity. Appends take it too, so an
// append cannot land between the LoadAll and SaveAll of an update or
// delete and be overwritten.
func (p *Policy) lock(entity string) func() {
	p.locksMu.Lock()
	mu, ok := p.locks[entity]
	if !ok {
		mu = &sync.Mutex{}
		p.locks[entity] = mu
	}
	p.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (p *Policy) observe(entity, op string, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, types.ErrNotFound):
		outcome = metrics.OutcomeNotFound
	case errors.Is(err, types.ErrRemoteUnavailable):
		outcome = metrics.OutcomeUnavailable
	default:
		outcome = metrics.OutcomeError
	}
	p.metrics.RemoteCall(entity, op, outcome)
}

func (p *Policy) fallback(ctx context.Context, entity, op string, err error) {
	p.logger.WarnContext(ctx, "remote unavailable, serving local snapshot",
		"entity", entity, "op", op, "error", err)
	p.metrics.FallbackRead(entity)
}

// List returns the entity's records from the sources its category names.
// The filter is passed to the remote store as a hint only; callers filter
// the result.
func (p *Policy) List(ctx context.Context, schema types.Schema, filter types.Filter) ([]types.Record, error) {
	entity := schema.Name
	switch schema.Category {
	case types.CategoryLocalOnly:
		return p.local.LoadAll(ctx, entity), nil

	case types.CategoryHybrid:
		remote, err := p.remote.List(ctx, entity, filter)
		p.observe(entity, "list", err)
		local := p.local.LoadAll(ctx, entity)
		if err != nil {
			if !errors.Is(err, types.ErrRemoteUnavailable) {
				return nil, err
			}
			p.fallback(ctx, entity, "list", err)
			return local, nil
		}
		return Merge(tagged(remote, types.SourceRemote), local), nil

	default:
		remote, err := p.remote.List(ctx, entity, filter)
		p.observe(entity, "list", err)
		if err != nil {
			if errors.Is(err, types.ErrRemoteUnavailable) && schema.Fallback {
				p.fallback(ctx, entity, "list", err)
				return p.local.LoadAll(ctx, entity), nil
			}
			return nil, err
		}
		return tagged(remote, types.SourceRemote), nil
	}
}

// Merge returns remote followed by the local records whose ids remote
// does not hold. Each local record keeps its stored order.
func Merge(remote, local []types.Record) []types.Record {
	seen := make(map[string]bool, len(remote))
	out := make([]types.Record, 0, len(remote)+len(local))
	for _, r := range remote {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	for _, r := range local {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

// Get looks the id up in the sources the category names.
func (p *Policy) Get(ctx context.Context, schema types.Schema, id string) (types.Record, error) {
	entity := schema.Name
	if schema.Category == types.CategoryLocalOnly {
		return p.findLocal(ctx, entity, id)
	}

	rec, err := p.remote.Get(ctx, entity, id)
	p.observe(entity, "get", err)
	if err == nil {
		return rec.WithSource(types.SourceRemote), nil
	}

	switch schema.Category {
	case types.CategoryHybrid:
		if !errors.Is(err, types.ErrNotFound) && !errors.Is(err, types.ErrRemoteUnavailable) {
			return types.Record{}, err
		}
		if errors.Is(err, types.ErrRemoteUnavailable) {
			p.fallback(ctx, entity, "get", err)
		}
		return p.findLocal(ctx, entity, id)
	default:
		if errors.Is(err, types.ErrRemoteUnavailable) && schema.Fallback {
			p.fallback(ctx, entity, "get", err)
			return p.findLocal(ctx, entity, id)
		}
		return types.Record{}, err
	}
}

func (p *Policy) findLocal(ctx context.Context, entity, id string) (types.Record, error) {
	for _, r := range p.local.LoadAll(ctx, entity) {
		if r.ID == id {
			return r, nil
		}
	}
	return types.Record{}, fmt.Errorf("%w: %s/%s", types.ErrNotFound, entity, id)
}

// Create writes a fully formed record to the category's create target.
func (p *Policy) Create(ctx context.Context, schema types.Schema, rec types.Record) (types.Record, error) {
	entity := schema.Name
	if CreateTarget(schema) == types.SourceRemote {
		out, err := p.remote.Create(ctx, entity, rec)
		p.observe(entity, "create", err)
		if err != nil {
			return types.Record{}, err
		}
		return out.WithSource(types.SourceRemote), nil
	}

	unlock := p.lock(entity)
	err := p.local.AppendOne(ctx, entity, rec)
	unlock()
	p.metrics.LocalWrite(entity, err == nil)
	if err != nil {
		return types.Record{}, err
	}
	return rec.WithSource(types.SourceLocal), nil
}

// Update merges fields into the record held by the category's write
// target. Hybrid records are updated where they live, local first.
func (p *Policy) Update(ctx context.Context, schema types.Schema, id string, fields map[string]any, now time.Time) (types.Record, error) {
	entity := schema.Name
	switch schema.Category {
	case types.CategoryLocalOnly:
		return p.updateLocal(ctx, entity, id, fields, now)
	case types.CategoryHybrid:
		rec, err := p.updateLocal(ctx, entity, id, fields, now)
		if !errors.Is(err, types.ErrNotFound) {
			return rec, err
		}
		return p.updateRemote(ctx, entity, id, fields, now)
	default:
		return p.updateRemote(ctx, entity, id, fields, now)
	}
}

func (p *Policy) updateRemote(ctx context.Context, entity, id string, fields map[string]any, now time.Time) (types.Record, error) {
	rec, err := p.remote.Update(ctx, entity, id, fields, now)
	p.observe(entity, "update", err)
	if err != nil {
		return types.Record{}, err
	}
	return rec.WithSource(types.SourceRemote), nil
}

func (p *Policy) updateLocal(ctx context.Context, entity, id string, fields map[string]any, now time.Time) (types.Record, error) {
	defer p.lock(entity)()

	records := p.local.LoadAll(ctx, entity)
	i := slices.IndexFunc(records, func(r types.Record) bool { return r.ID == id })
	if i < 0 {
		return types.Record{}, fmt.Errorf("%w: %s/%s", types.ErrNotFound, entity, id)
	}
	rec := records[i].Merge(fields)
	rec.UpdatedAt = now
	if rec.UpdatedAt.Before(rec.CreatedAt) {
		rec.UpdatedAt = rec.CreatedAt
	}
	records[i] = rec

	err := p.local.SaveAll(ctx, entity, records)
	p.metrics.LocalWrite(entity, err == nil)
	if err != nil {
		return types.Record{}, err
	}
	return rec.WithSource(types.SourceLocal), nil
}

// Delete removes the id from every source the category writes to. A
// missing id is not an error.
func (p *Policy) Delete(ctx context.Context, schema types.Schema, id string) error {
	entity := schema.Name
	switch schema.Category {
	case types.CategoryLocalOnly:
		return p.deleteLocal(ctx, entity, id)
	case types.CategoryHybrid:
		if err := p.deleteLocal(ctx, entity, id); err != nil {
			return err
		}
		return p.deleteRemote(ctx, entity, id)
	default:
		return p.deleteRemote(ctx, entity, id)
	}
}

func (p *Policy) deleteRemote(ctx context.Context, entity, id string) error {
	err := p.remote.Delete(ctx, entity, id)
	p.observe(entity, "delete", err)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return err
	}
	return nil
}

func (p *Policy) deleteLocal(ctx context.Context, entity, id string) error {
	defer p.lock(entity)()

	records := p.local.LoadAll(ctx, entity)
	n := len(records)
	kept := slices.DeleteFunc(records, func(r types.Record) bool { return r.ID == id })
	if len(kept) == n {
		return nil
	}
	err := p.local.SaveAll(ctx, entity, kept)
	p.metrics.LocalWrite(entity, err == nil)
	return err
}

// BulkCreate writes all records to the remote store as one batch. Any
// failure is reported as ErrRemoteUnavailable for the whole batch.
func (p *Policy) BulkCreate(ctx context.Context, schema types.Schema, records []types.Record) ([]types.Record, error) {
	entity := schema.Name
	if schema.Category == types.CategoryLocalOnly {
		return nil, fmt.Errorf("%w: bulk create is remote only and %s is local-only", types.ErrValidation, entity)
	}
	out, err := p.remote.BulkCreate(ctx, entity, records)
	p.observe(entity, "bulk_create", err)
	if err != nil {
		if errors.Is(err, types.ErrRemoteUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", types.ErrRemoteUnavailable, err)
	}
	return tagged(out, types.SourceRemote), nil
}

// Snapshot replaces the local copy of a remote-primary entity with the
// remote records, so later fallback reads have data to serve. It returns
// the number of records captured.
func (p *Policy) Snapshot(ctx context.Context, schema types.Schema) (int, error) {
	entity := schema.Name
	if schema.Category != types.CategoryRemotePrimary {
		return 0, fmt.Errorf("%w: snapshots apply to remote-primary entities, %s is %s",
			types.ErrValidation, entity, schema.Category)
	}
	records, err := p.remote.List(ctx, entity, nil)
	p.observe(entity, "list", err)
	if err != nil {
		return 0, err
	}

	defer p.lock(entity)()
	err = p.local.SaveAll(ctx, entity, records)
	p.metrics.LocalWrite(entity, err == nil)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func tagged(records []types.Record, src types.Source) []types.Record {
	out := make([]types.Record, len(records))
	for i, r := range records {
		out[i] = r.WithSource(src)
	}
	return out
}
