package casebook

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/casebook/internal/dashboard"
	"github.com/mesh-intelligence/casebook/internal/remote/memory"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

func TestOpenValidatesConfig(t *testing.T) {
	_, err := Open(context.Background(), types.Config{Local: types.LocalConfig{Driver: "floppy"}})
	assert.ErrorIs(t, err, types.ErrLocalDriverUnknown)
}

func TestOpenDefaults(t *testing.T) {
	ctx := context.Background()
	cb, err := Open(ctx, types.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer cb.Close()

	c, err := cb.Create(ctx, types.EntityCases, map[string]any{"debtor_name": "Jane Doe", "amount": 900})
	require.NoError(t, err)
	assert.Equal(t, types.SourceLocal, c.Source)

	logs, err := cb.Filter(ctx, types.EntityActivityLogs, types.Filter{"case_id": c.ID}, "created_at")
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestLocalSnapshotSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for _, driver := range []string{types.LocalJSONL, types.LocalSQLite, types.LocalBadger} {
		t.Run(driver, func(t *testing.T) {
			cfg := types.Config{DataDir: filepath.Join(dir, driver), Local: types.LocalConfig{Driver: driver}}

			cb, err := Open(ctx, cfg)
			require.NoError(t, err)
			s, err := cb.Create(ctx, types.EntitySessions, map[string]any{"user_id": "u1"})
			require.NoError(t, err)
			require.NoError(t, cb.Close())

			cb, err = Open(ctx, cfg)
			require.NoError(t, err)
			defer cb.Close()
			got, err := cb.Get(ctx, types.EntitySessions, s.ID)
			require.NoError(t, err)
			assert.Equal(t, "u1", got.Fields["user_id"])
		})
	}
}

func TestRemoteTimeoutFallsBack(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	reg := prometheus.NewRegistry()
	cfg := types.Config{DataDir: t.TempDir(), Remote: types.RemoteConfig{Timeout: 20 * time.Millisecond}}

	cb, err := Open(ctx, cfg, WithRemoteStore(mem), WithRegisterer(reg))
	require.NoError(t, err)
	defer cb.Close()

	_, err = cb.Create(ctx, types.EntityVendors, map[string]any{"name": "Acme"})
	require.NoError(t, err)
	n, err := cb.Snapshot(ctx, types.EntityVendors)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	mem.SetLatency(time.Second)
	got, err := cb.List(ctx, types.EntityVendors, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.SourceLocal, got[0].Source)

	expected := `
# HELP casebook_fallback_reads_total Reads answered from the local snapshot because the remote store was unavailable.
# TYPE casebook_fallback_reads_total counter
casebook_fallback_reads_total{entity="vendors"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "casebook_fallback_reads_total"))
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	cb, err := Open(ctx, types.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer cb.Close()

	c, err := cb.Create(ctx, types.EntityCases, map[string]any{"debtor_name": "Jane", "amount": 1000, "portfolio_id": "p1"})
	require.NoError(t, err)
	_, err = cb.Create(ctx, types.EntityPayments, map[string]any{"case_id": c.ID, "amount": 250, "status": "completed"})
	require.NoError(t, err)

	s, err := cb.Dashboard(ctx, dashboard.Options{ProjectMonths: 3})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, s.TotalPlaced)
	assert.Equal(t, 250.0, s.TotalCollected)
	assert.InDelta(t, 0.25, s.CollectionRate, 1e-9)
	assert.Len(t, s.Projection, 3)
}

func TestDashboardDuringOutage(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	cb, err := Open(ctx, types.Config{DataDir: t.TempDir()}, WithRemoteStore(mem))
	require.NoError(t, err)
	defer cb.Close()

	// Payments fall back to the empty local snapshot.
	mem.SetAvailable(false)
	s, err := cb.Dashboard(ctx, dashboard.Options{})
	require.NoError(t, err)
	assert.Zero(t, s.TotalCollected)
}
