package jsonl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

func newRecord(id string, fields map[string]any) types.Record {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return types.Record{ID: id, CreatedAt: now, UpdatedAt: now, Fields: fields}
}

func TestLoadAllEmptyEntity(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	got := s.LoadAll(context.Background(), "cases")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAppendPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.AppendOne(ctx, "cases", newRecord(id, map[string]any{"debtor_name": id})))
	}

	got := s.LoadAll(ctx, "cases")
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, "b", got[2].ID)
	for _, r := range got {
		assert.Equal(t, types.SourceLocal, r.Source)
	}
}

func TestSaveAllOverwrites(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, s.AppendOne(ctx, "cases", newRecord("1", nil)))
	require.NoError(t, s.SaveAll(ctx, "cases", []types.Record{newRecord("2", map[string]any{"x": "y"})}))

	got := s.LoadAll(ctx, "cases")
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "y", got[0].Fields["x"])
}

func TestRecordsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.AppendOne(ctx, "sessions", newRecord("tok", map[string]any{"user_id": "u1"})))

	reopened, err := New(dir, nil)
	require.NoError(t, err)
	got := reopened.LoadAll(ctx, "sessions")
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].Fields["user_id"])
}

func TestConcurrentAppendsAreAtomic(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AppendOne(ctx, "cases", newRecord(fmt.Sprintf("r%d", i), nil)))
		}()
	}
	wg.Wait()

	assert.Len(t, s.LoadAll(ctx, "cases"), n)
}

func TestWriteFailureIsStorageWriteError(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	s, err := New(dir, nil)
	require.NoError(t, err)

	// Replace the directory with a plain file so temp-file creation fails.
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0o644))

	err = s.AppendOne(ctx, "cases", newRecord("1", nil))
	assert.ErrorIs(t, err, types.ErrStorageWrite)
	assert.Empty(t, s.LoadAll(ctx, "cases"))
}

func TestInvalidEntityName(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, s.SaveAll(context.Background(), "../escape", nil), types.ErrStorageWrite)
	assert.Empty(t, s.LoadAll(context.Background(), "../escape"))
}
