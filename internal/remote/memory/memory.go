// Package memory is a process-local remote store. It backs demos and tests
// and can simulate an outage or a slow service.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mesh-intelligence/casebook/internal/query"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

var _ types.RemoteStore = (*Store)(nil)

// Store holds records per entity in creation order.
type Store struct {
	mu        sync.RWMutex
	entities  map[string][]types.Record
	available bool
	latency   time.Duration
	calls     int
}

// New returns an empty, available store.
func New() *Store {
	return &Store{entities: map[string][]types.Record{}, available: true}
}

// SetAvailable toggles simulated reachability. While unavailable every
// call fails with ErrRemoteUnavailable.
func (s *Store) SetAvailable(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = ok
}

// SetLatency delays every call by d, or until the context ends.
func (s *Store) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Calls returns the number of calls received so far.
func (s *Store) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

// Seed appends records as if created remotely. It bypasses availability.
func (s *Store) Seed(entity string, records ...types.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.entities[entity] = append(s.entities[entity], r.Clone().WithSource(types.SourceRemote))
	}
}

func (s *Store) enter(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	latency, available := s.latency, s.available
	s.mu.Unlock()

	if latency > 0 {
		t := time.NewTimer(latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", types.ErrRemoteUnavailable, ctx.Err())
		case <-t.C:
		}
	}
	if !available {
		return fmt.Errorf("%w: memory store offline", types.ErrRemoteUnavailable)
	}
	return nil
}

func (s *Store) index(entity, id string) int {
	return slices.IndexFunc(s.entities[entity], func(r types.Record) bool { return r.ID == id })
}

// List returns the entity's records in creation order, filtered.
func (s *Store) List(ctx context.Context, entity string, filter types.Filter) ([]types.Record, error) {
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Record, 0, len(s.entities[entity]))
	for _, r := range s.entities[entity] {
		out = append(out, r.Clone())
	}
	return query.Apply(out, filter), nil
}

// Get returns the record or ErrNotFound.
func (s *Store) Get(ctx context.Context, entity, id string) (types.Record, error) {
	if err := s.enter(ctx); err != nil {
		return types.Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.index(entity, id)
	if i < 0 {
		return types.Record{}, fmt.Errorf("%w: %s/%s", types.ErrNotFound, entity, id)
	}
	return s.entities[entity][i].Clone(), nil
}

// Create stores record. A duplicate id fails with ErrValidation.
func (s *Store) Create(ctx context.Context, entity string, record types.Record) (types.Record, error) {
	if err := s.enter(ctx); err != nil {
		return types.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index(entity, record.ID) >= 0 {
		return types.Record{}, fmt.Errorf("%w: duplicate id %s", types.ErrValidation, record.ID)
	}
	stored := record.Clone().WithSource(types.SourceRemote)
	s.entities[entity] = append(s.entities[entity], stored)
	return stored.Clone(), nil
}

// Update merges fields into the stored record.
func (s *Store) Update(ctx context.Context, entity, id string, fields map[string]any, updatedAt time.Time) (types.Record, error) {
	if err := s.enter(ctx); err != nil {
		return types.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(entity, id)
	if i < 0 {
		return types.Record{}, fmt.Errorf("%w: %s/%s", types.ErrNotFound, entity, id)
	}
	rec := s.entities[entity][i].Merge(fields)
	rec.UpdatedAt = updatedAt
	if rec.UpdatedAt.Before(rec.CreatedAt) {
		rec.UpdatedAt = rec.CreatedAt
	}
	s.entities[entity][i] = rec
	return rec.Clone(), nil
}

// Delete removes the record or reports ErrNotFound.
func (s *Store) Delete(ctx context.Context, entity, id string) error {
	if err := s.enter(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(entity, id)
	if i < 0 {
		return fmt.Errorf("%w: %s/%s", types.ErrNotFound, entity, id)
	}
	s.entities[entity] = slices.Delete(s.entities[entity], i, i+1)
	return nil
}

// BulkCreate stores all records or none.
func (s *Store) BulkCreate(ctx context.Context, entity string, records []types.Record) ([]types.Record, error) {
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]bool{}
	for _, r := range records {
		if seen[r.ID] || s.index(entity, r.ID) >= 0 {
			return nil, fmt.Errorf("%w: duplicate id %s", types.ErrValidation, r.ID)
		}
		seen[r.ID] = true
	}
	out := make([]types.Record, 0, len(records))
	for _, r := range records {
		stored := r.Clone().WithSource(types.SourceRemote)
		s.entities[entity] = append(s.entities[entity], stored)
		out = append(out, stored.Clone())
	}
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
