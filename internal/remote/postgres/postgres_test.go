package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

var t0 = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

var recordColumns = []string{"id", "created_at", "updated_at", "fields"}

func setupMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return New(db), mock
}

func TestOpenCreatesTable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		assert.Equal(t, driverName, driver)
		assert.Equal(t, defaultDSN, dsn)
		return db, nil
	}
	defer func() { sqlOpen = orig }()

	mock.ExpectPing()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS records")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := Open(context.Background(), "")
	require.NoError(t, err)
	assert.Same(t, db, s.DB())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListQuery(t *testing.T) {
	tests := []struct {
		name     string
		filter   types.Filter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "no filter",
			wantSQL:  selectColumns + ` WHERE entity = $1 ORDER BY created_at, id`,
			wantArgs: []any{"cases"},
		},
		{
			name:     "string condition",
			filter:   types.Filter{"status": "active"},
			wantSQL:  selectColumns + ` WHERE entity = $1 AND fields->>$2 = $3 ORDER BY created_at, id`,
			wantArgs: []any{"cases", "status", "active"},
		},
		{
			name:     "membership",
			filter:   types.Filter{"status": []string{"active", "closed"}},
			wantSQL:  selectColumns + ` WHERE entity = $1 AND fields->>$2 IN ($3, $4) ORDER BY created_at, id`,
			wantArgs: []any{"cases", "status", "active", "closed"},
		},
		{
			name:     "non-string and reserved conditions are not pushed down",
			filter:   types.Filter{"amount": 10, "id": "c1"},
			wantSQL:  selectColumns + ` WHERE entity = $1 ORDER BY created_at, id`,
			wantArgs: []any{"cases"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := listQuery("cases", tt.filter)
			assert.Equal(t, tt.wantSQL, q)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestList(t *testing.T) {
	s, mock := setupMock(t)
	rows := sqlmock.NewRows(recordColumns).
		AddRow("c1", t0, t0, []byte(`{"debtor_name":"Ann","amount":120}`)).
		AddRow("c2", t0, t0.Add(time.Hour), []byte(`{}`))
	mock.ExpectQuery(regexp.QuoteMeta(selectColumns + ` WHERE entity = $1 AND fields->>$2 = $3`)).
		WithArgs("cases", "status", "active").
		WillReturnRows(rows)

	got, err := s.List(context.Background(), "cases", types.Filter{"status": "active"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, "Ann", got[0].Fields["debtor_name"])
	assert.Equal(t, float64(120), got[0].Fields["amount"])
	assert.Equal(t, types.SourceRemote, got[1].Source)
}

func TestListUnavailable(t *testing.T) {
	s, mock := setupMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectColumns)).WillReturnError(errors.New("connection reset"))

	_, err := s.List(context.Background(), "cases", nil)
	assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
}

func TestGet(t *testing.T) {
	s, mock := setupMock(t)
	q := regexp.QuoteMeta(selectColumns + ` WHERE entity = $1 AND id = $2`)
	mock.ExpectQuery(q).WithArgs("vendors", "v1").
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow("v1", t0, t0, []byte(`{"name":"Acme"}`)))
	mock.ExpectQuery(q).WithArgs("vendors", "v2").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	got, err := s.Get(context.Background(), "vendors", "v1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Fields["name"])

	_, err = s.Get(context.Background(), "vendors", "v2")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCreate(t *testing.T) {
	s, mock := setupMock(t)
	rec := types.Record{ID: "p1", CreatedAt: t0, UpdatedAt: t0, Fields: map[string]any{"amount": 50}}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO records")).
		WithArgs("payments", "p1", t0, t0, []byte(`{"amount":50}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO records")).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	got, err := s.Create(context.Background(), "payments", rec)
	require.NoError(t, err)
	assert.Equal(t, types.SourceRemote, got.Source)

	_, err = s.Create(context.Background(), "payments", rec)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestUpdate(t *testing.T) {
	s, mock := setupMock(t)
	later := t0.Add(time.Minute)
	q := regexp.QuoteMeta("UPDATE records SET fields = fields || $3::jsonb")

	mock.ExpectQuery(q).
		WithArgs("cases", "c1", []byte(`{"status":"closed"}`), later).
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow("c1", t0, later, []byte(`{"debtor_name":"Ann","status":"closed"}`)))
	mock.ExpectQuery(q).
		WithArgs("cases", "missing", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(recordColumns))

	got, err := s.Update(context.Background(), "cases", "c1", map[string]any{"status": "closed", "id": "ignored"}, later)
	require.NoError(t, err)
	assert.Equal(t, "closed", got.Fields["status"])
	assert.Equal(t, later, got.UpdatedAt)

	_, err = s.Update(context.Background(), "cases", "missing", map[string]any{"status": "closed"}, later)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDelete(t *testing.T) {
	s, mock := setupMock(t)
	q := regexp.QuoteMeta(`DELETE FROM records WHERE entity = $1 AND id = $2`)
	mock.ExpectExec(q).WithArgs("cases", "c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("cases", "c1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), "cases", "c1"))
	assert.ErrorIs(t, s.Delete(context.Background(), "cases", "c1"), types.ErrNotFound)
}

func TestBulkCreateRollsBack(t *testing.T) {
	s, mock := setupMock(t)
	recs := []types.Record{
		{ID: "v1", CreatedAt: t0, UpdatedAt: t0, Fields: map[string]any{"name": "A"}},
		{ID: "v2", CreatedAt: t0, UpdatedAt: t0, Fields: map[string]any{"name": "B"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO records")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO records")).WillReturnError(errors.New("broken pipe"))
	mock.ExpectRollback()

	_, err := s.BulkCreate(context.Background(), "vendors", recs)
	assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
}

func TestBulkCreateCommits(t *testing.T) {
	s, mock := setupMock(t)
	recs := []types.Record{
		{ID: "v1", CreatedAt: t0, UpdatedAt: t0},
		{ID: "v2", CreatedAt: t0, UpdatedAt: t0},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO records")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO records")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	got, err := s.BulkCreate(context.Background(), "vendors", recs)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
