// Package jsonl implements the local record store as one JSONL file per
// entity. Every write rewrites the entity's file atomically.
package jsonl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

var _ types.RecordStore = (*Store)(nil)

// Store keeps <entity>.jsonl files under a data directory.
type Store struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger
}

// New creates the data directory if needed and returns a store rooted there.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) path(entity string) string {
	return filepath.Join(s.dir, entity+".jsonl")
}

// LoadAll returns the entity's records in file order.
func (s *Store) LoadAll(ctx context.Context, entity string) []types.Record {
	if !types.ValidEntityName(entity) {
		return []types.Record{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, entity)
}

// load must be called with s.mu held.
func (s *Store) load(ctx context.Context, entity string) []types.Record {
	f, err := os.Open(s.path(entity))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.WarnContext(ctx, "jsonl: opening snapshot", "entity", entity, "error", err)
		}
		return []types.Record{}
	}
	defer f.Close()

	records, skipped, err := decodeRecords(f)
	if err != nil {
		s.logger.WarnContext(ctx, "jsonl: reading snapshot", "entity", entity, "error", err)
	}
	if skipped > 0 {
		s.logger.WarnContext(ctx, "jsonl: skipped malformed records", "entity", entity, "count", skipped)
	}
	if records == nil {
		records = []types.Record{}
	}
	return records
}

// SaveAll replaces the entity's file with records.
func (s *Store) SaveAll(ctx context.Context, entity string, records []types.Record) error {
	if !types.ValidEntityName(entity) {
		return fmt.Errorf("%w: invalid entity name %q", types.ErrStorageWrite, entity)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(entity, records)
}

// AppendOne adds record to the end of the entity's file.
func (s *Store) AppendOne(ctx context.Context, entity string, record types.Record) error {
	if !types.ValidEntityName(entity) {
		return fmt.Errorf("%w: invalid entity name %q", types.ErrStorageWrite, entity)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.load(ctx, entity)
	return s.save(entity, append(records, record))
}

// save must be called with s.mu held.
func (s *Store) save(entity string, records []types.Record) error {
	err := replaceFile(s.path(entity), func(w io.Writer) error {
		return encodeRecords(w, records)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrStorageWrite, entity, err)
	}
	return nil
}

// Close is a no-op; files are closed after every operation.
func (s *Store) Close() error {
	return nil
}
