// Package postgres is the remote store backed by a single Postgres table
// holding every entity's records as JSONB documents.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/mesh-intelligence/casebook/pkg/types"
)

var _ types.RemoteStore = (*Store)(nil)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/casebook?sslmode=disable"

	uniqueViolation = "23505"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

const createTable = `CREATE TABLE IF NOT EXISTS records (
	entity TEXT NOT NULL,
	id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (entity, id)
)`

const selectColumns = `SELECT id, created_at, updated_at, fields FROM records`

// Store talks to Postgres through database/sql.
type Store struct {
	db *sql.DB
}

// Open connects to dsn (defaultDSN when empty), pings and creates the
// records table if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure records table: %w", err)
	}
	return New(db), nil
}

// New wraps an open database whose records table already exists.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// listQuery builds the List statement. String conditions and string sets
// are pushed down; other conditions are left to the caller.
func listQuery(entity string, filter types.Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(selectColumns)
	b.WriteString(` WHERE entity = $1`)
	args := []any{entity}

	for _, field := range sortedKeys(filter) {
		if types.IsReserved(field) {
			continue
		}
		switch want := filter[field].(type) {
		case string:
			args = append(args, field, want)
			fmt.Fprintf(&b, ` AND fields->>$%d = $%d`, len(args)-1, len(args))
		case []string:
			if len(want) == 0 {
				continue
			}
			args = append(args, field)
			keyPos := len(args)
			placeholders := make([]string, len(want))
			for i, v := range want {
				args = append(args, v)
				placeholders[i] = fmt.Sprintf("$%d", len(args))
			}
			fmt.Fprintf(&b, ` AND fields->>$%d IN (%s)`, keyPos, strings.Join(placeholders, ", "))
		}
	}
	b.WriteString(` ORDER BY created_at, id`)
	return b.String(), args
}

// List returns the entity's records ordered by creation time.
func (s *Store) List(ctx context.Context, entity string, filter types.Filter) ([]types.Record, error) {
	q, args := listQuery(entity, filter)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable("list", err)
	}
	defer func() { _ = rows.Close() }()

	out := []types.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, unavailable("list", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	return out, nil
}

// Get returns the record or ErrNotFound.
func (s *Store) Get(ctx context.Context, entity, id string) (types.Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE entity = $1 AND id = $2`, entity, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Record{}, fmt.Errorf("%w: %s/%s", types.ErrNotFound, entity, id)
	}
	if err != nil {
		return types.Record{}, unavailable("get", err)
	}
	return rec, nil
}

const insertRecord = `INSERT INTO records (entity, id, created_at, updated_at, fields) VALUES ($1, $2, $3, $4, $5)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, entity string, rec types.Record) error {
	payload, err := encodeFields(rec.Fields)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, insertRecord, entity, rec.ID, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(), payload)
	return err
}

// Create inserts record. A duplicate id fails with ErrValidation.
func (s *Store) Create(ctx context.Context, entity string, record types.Record) (types.Record, error) {
	if err := insert(ctx, s.db, entity, record); err != nil {
		return types.Record{}, writeError("create", record.ID, err)
	}
	return record.Clone().WithSource(types.SourceRemote), nil
}

// Update merges fields at the top level of the stored document. The
// stored updated_at never precedes created_at.
func (s *Store) Update(ctx context.Context, entity, id string, fields map[string]any, updatedAt time.Time) (types.Record, error) {
	payload, err := encodeFields(withoutReserved(fields))
	if err != nil {
		return types.Record{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE records SET fields = fields || $3::jsonb, updated_at = GREATEST($4, created_at)
		WHERE entity = $1 AND id = $2
		RETURNING id, created_at, updated_at, fields`,
		entity, id, payload, updatedAt.UTC())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Record{}, fmt.Errorf("%w: %s/%s", types.ErrNotFound, entity, id)
	}
	if err != nil {
		return types.Record{}, unavailable("update", err)
	}
	return rec, nil
}

// Delete removes the record or reports ErrNotFound.
func (s *Store) Delete(ctx context.Context, entity, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE entity = $1 AND id = $2`, entity, id)
	if err != nil {
		return unavailable("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", types.ErrNotFound, entity, id)
	}
	return nil
}

// BulkCreate inserts every record in one transaction.
func (s *Store) BulkCreate(ctx context.Context, entity string, records []types.Record) ([]types.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("bulk create", err)
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if err := insert(ctx, tx, entity, rec); err != nil {
			return nil, writeError("bulk create", rec.ID, err)
		}
		out = append(out, rec.Clone().WithSource(types.SourceRemote))
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("bulk create commit", err)
	}
	return out, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (types.Record, error) {
	var (
		rec     types.Record
		payload []byte
	)
	if err := sc.Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt, &payload); err != nil {
		return types.Record{}, err
	}
	rec.Fields = map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec.Fields); err != nil {
			return types.Record{}, fmt.Errorf("decoding fields of %s: %w", rec.ID, err)
		}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	rec.Source = types.SourceRemote
	return rec, nil
}

func encodeFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding fields: %w", types.ErrValidation, err)
	}
	return payload, nil
}

func withoutReserved(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if !types.IsReserved(k) {
			out[k] = v
		}
	}
	return out
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: postgres %s: %w", types.ErrRemoteUnavailable, op, err)
}

func writeError(op, id string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: duplicate id %s", types.ErrValidation, id)
	}
	if errors.Is(err, types.ErrValidation) {
		return err
	}
	return unavailable(op, err)
}

func sortedKeys(filter types.Filter) []string {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
