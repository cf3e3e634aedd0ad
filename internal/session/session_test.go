package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/casebook/internal/catalog"
	"github.com/mesh-intelligence/casebook/internal/local/jsonl"
	"github.com/mesh-intelligence/casebook/internal/reconcile"
	"github.com/mesh-intelligence/casebook/internal/remote/memory"
	"github.com/mesh-intelligence/casebook/internal/repository"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func setup(t *testing.T, opts ...Option) (*Manager, *clock) {
	t.Helper()
	m, c, _ := setupRepo(t, opts...)
	return m, c
}

func setupRepo(t *testing.T, opts ...Option) (*Manager, *clock, types.Repository) {
	t.Helper()
	local, err := jsonl.New(t.TempDir(), nil)
	require.NoError(t, err)
	repo := repository.New(catalog.Standard(), reconcile.New(local, memory.New()))

	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), types.EntityUsers, map[string]any{
		"email":         "agent@example.com",
		"full_name":     "Alex Agent",
		"password_hash": hash,
	})
	require.NoError(t, err)

	c := &clock{t: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(c.Now), WithTTL(time.Hour)}, opts...)
	return NewManager(repo, opts...), c, repo
}

// failingDelete rejects every Delete.
type failingDelete struct {
	types.Repository
}

func (failingDelete) Delete(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestLoginAndCurrent(t *testing.T) {
	ctx := context.Background()
	m, _ := setup(t)

	s, err := m.Login(ctx, "agent@example.com", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)
	assert.NotEmpty(t, s.UserID)

	cur, err := m.Current(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.UserID, cur.UserID)
	assert.Equal(t, s.ID, cur.ID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "agent@example.com", "hunter3"},
		{"unknown user", "nobody@example.com", "hunter2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := setup(t)
			_, err := m.Login(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestSessionExpires(t *testing.T) {
	ctx := context.Background()
	m, c := setup(t)

	s, err := m.Login(ctx, "agent@example.com", "hunter2")
	require.NoError(t, err)

	c.t = c.t.Add(2 * time.Hour)
	_, err = m.Current(ctx, s.Token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	m, _ := setup(t)

	s, err := m.Login(ctx, "agent@example.com", "hunter2")
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx, s.Token))
	require.NoError(t, m.Logout(ctx, s.Token))

	_, err = m.Current(ctx, s.Token)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = m.Current(ctx, "")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestExpiredSessionCleanupFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	m, c, repo := setupRepo(t)

	s, err := m.Login(ctx, "agent@example.com", "hunter2")
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	broken := NewManager(failingDelete{repo},
		WithClock(c.Now), WithLogger(slog.New(slog.NewTextHandler(logs, nil))))

	c.t = c.t.Add(2 * time.Hour)
	_, err = broken.Current(ctx, s.Token)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "removing expired session")
	assert.Contains(t, logs.String(), "disk full")
	assert.Contains(t, logs.String(), s.ID)
}
