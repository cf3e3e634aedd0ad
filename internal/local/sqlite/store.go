// Package sqlite implements the local record store on an embedded SQLite
// database. Each record is stored as its JSON payload in a snapshots table
// keyed by entity and insertion sequence.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

var _ types.RecordStore = (*Store)(nil)

// DBFileName is the database file created under the data directory.
const DBFileName = "casebook.db"

// Store is a SQLite-backed types.RecordStore.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *slog.Logger
}

// Open creates dataDir if needed, opens the database and applies the
// schema.
func Open(ctx context.Context, dataDir string, logger *slog.Logger) (*Store, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, DBFileName))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
	}
	return &Store{db: db, logger: logger}, nil
}

// LoadAll returns the entity's records ordered by insertion sequence.
func (s *Store) LoadAll(ctx context.Context, entity string) []types.Record {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM snapshots WHERE entity = ? ORDER BY seq", entity)
	if err != nil {
		s.logger.WarnContext(ctx, "sqlite: loading snapshot", "entity", entity, "error", err)
		return []types.Record{}
	}
	defer rows.Close()

	records := []types.Record{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			s.logger.WarnContext(ctx, "sqlite: scanning record", "entity", entity, "error", err)
			continue
		}
		var rec types.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil || rec.ID == "" {
			s.logger.WarnContext(ctx, "sqlite: skipping malformed record", "entity", entity)
			continue
		}
		records = append(records, rec.WithSource(types.SourceLocal))
	}
	if err := rows.Err(); err != nil {
		s.logger.WarnContext(ctx, "sqlite: iterating snapshot", "entity", entity, "error", err)
	}
	return records
}

// SaveAll replaces the entity's rows in one transaction.
func (s *Store) SaveAll(ctx context.Context, entity string, records []types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", types.ErrStorageWrite, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots WHERE entity = ?", entity); err != nil {
		return fmt.Errorf("%w: clearing %s: %w", types.ErrStorageWrite, entity, err)
	}
	for i, rec := range records {
		if err := insertRecord(ctx, tx, entity, int64(i+1), rec); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing %s: %w", types.ErrStorageWrite, entity, err)
	}
	return nil
}

// AppendOne inserts record after the entity's last row.
func (s *Store) AppendOne(ctx context.Context, entity string, record types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", types.ErrStorageWrite, err)
	}
	defer tx.Rollback()

	var last int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM snapshots WHERE entity = ?", entity).Scan(&last); err != nil {
		return fmt.Errorf("%w: reading sequence: %w", types.ErrStorageWrite, err)
	}
	if err := insertRecord(ctx, tx, entity, last+1, record); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing %s: %w", types.ErrStorageWrite, entity, err)
	}
	return nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, entity string, seq int64, rec types.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encoding record %s: %w", types.ErrStorageWrite, rec.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO snapshots (entity, seq, record_id, payload) VALUES (?, ?, ?, ?)",
		entity, seq, rec.ID, string(payload)); err != nil {
		return fmt.Errorf("%w: inserting record %s: %w", types.ErrStorageWrite, rec.ID, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
