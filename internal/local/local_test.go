package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

func TestOpenDrivers(t *testing.T) {
	tests := []struct {
		name   string
		driver string
	}{
		{"default is jsonl", ""},
		{"jsonl", types.LocalJSONL},
		{"sqlite", types.LocalSQLite},
		{"badger", types.LocalBadger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := types.Config{DataDir: t.TempDir(), Local: types.LocalConfig{Driver: tt.driver}}

			store, err := Open(ctx, cfg, nil)
			require.NoError(t, err)
			defer store.Close()

			now := time.Now().UTC()
			rec := types.Record{ID: "local-1", CreatedAt: now, UpdatedAt: now, Fields: map[string]any{"user_id": "u1"}}
			require.NoError(t, store.AppendOne(ctx, types.EntitySessions, rec))

			got := store.LoadAll(ctx, types.EntitySessions)
			require.Len(t, got, 1)
			assert.Equal(t, "local-1", got[0].ID)
			assert.Equal(t, "u1", got[0].Fields["user_id"])
			assert.Equal(t, types.SourceLocal, got[0].Source)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), types.Config{Local: types.LocalConfig{Driver: "etcd"}}, nil)
	assert.ErrorIs(t, err, types.ErrLocalDriverUnknown)
}
