package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/casebook/internal/remote/memory"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

// failing returns a fixed error from every call.
type failing struct {
	types.RemoteStore
	err error
}

func (f failing) Get(context.Context, string, string) (types.Record, error) {
	return types.Record{}, f.err
}

func TestBoundedTimesOut(t *testing.T) {
	mem := memory.New()
	mem.SetLatency(time.Second)
	b := NewBounded(mem, 20*time.Millisecond)

	start := time.Now()
	_, err := b.List(context.Background(), "cases", nil)
	assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

// stuck ignores ctx and blocks until release is closed.
type stuck struct {
	types.RemoteStore
	release chan struct{}
}

func (s stuck) List(context.Context, string, types.Filter) ([]types.Record, error) {
	<-s.release
	return []types.Record{{ID: "late"}}, nil
}

func (s stuck) Delete(context.Context, string, string) error {
	<-s.release
	return nil
}

func TestBoundedTimesOutWhenStoreIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	b := NewBounded(stuck{release: release}, 20*time.Millisecond)

	tests := []struct {
		name string
		call func() error
	}{
		{"list", func() error {
			got, err := b.List(context.Background(), "cases", nil)
			assert.Nil(t, got)
			return err
		}},
		{"delete", func() error { return b.Delete(context.Background(), "cases", "c1") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			err := tt.call()
			assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Less(t, time.Since(start), 500*time.Millisecond)
		})
	}
}

func TestBoundedCallerCancel(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	b := NewBounded(stuck{release: release}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.List(ctx, "cases", nil)
	assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBoundedErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found passes through", types.ErrNotFound, types.ErrNotFound},
		{"validation passes through", types.ErrValidation, types.ErrValidation},
		{"transport error", errors.New("connection refused"), types.ErrRemoteUnavailable},
		{"deadline", context.DeadlineExceeded, types.ErrRemoteUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBounded(failing{err: tt.err}, time.Second)
			_, err := b.Get(context.Background(), "cases", "c1")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBoundedDefaultTimeout(t *testing.T) {
	b := NewBounded(memory.New(), 0)
	assert.Equal(t, types.DefaultRemoteTimeout, b.timeout)
}

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, types.Config{}, nil)
	require.NoError(t, err)
	defer b.Close()

	_, ok := b.Unwrap().(*memory.Store)
	assert.True(t, ok)

	now := time.Now().UTC()
	_, err = b.Create(ctx, "vendors", types.Record{ID: "v1", CreatedAt: now, UpdatedAt: now, Fields: map[string]any{"name": "Acme"}})
	require.NoError(t, err)
	got, err := b.List(ctx, "vendors", nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), types.Config{Remote: types.RemoteConfig{Driver: "mongo"}}, nil)
	assert.ErrorIs(t, err, types.ErrRemoteDriverUnknown)
}
