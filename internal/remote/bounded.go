package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

var _ types.RemoteStore = (*Bounded)(nil)

// Bounded wraps a RemoteStore so every call runs under a deadline. Errors
// other than ErrNotFound and ErrValidation surface as ErrRemoteUnavailable.
type Bounded struct {
	store   types.RemoteStore
	timeout time.Duration
}

// NewBounded returns store wrapped with a per-call timeout. A non-positive
// timeout uses types.DefaultRemoteTimeout.
func NewBounded(store types.RemoteStore, timeout time.Duration) *Bounded {
	if timeout <= 0 {
		timeout = types.DefaultRemoteTimeout
	}
	return &Bounded{store: store, timeout: timeout}
}

// Unwrap returns the wrapped store.
func (b *Bounded) Unwrap() types.RemoteStore { return b.store }

type result[T any] struct {
	val T
	err error
}

// call runs op under the per-call deadline. op runs on its own goroutine so
// a driver that ignores ctx still returns control at the deadline; its late
// result is discarded.
func call[T any](ctx context.Context, b *Bounded, op func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := op(ctx)
		done <- result[T]{v, err}
	}()

	var r result[T]
	select {
	case r = <-done:
	case <-ctx.Done():
		r.err = ctx.Err()
	}
	if r.err != nil {
		var zero T
		return zero, b.mapErr(r.err)
	}
	return r.val, nil
}

func (b *Bounded) mapErr(err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrValidation),
		errors.Is(err, types.ErrRemoteUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: timed out after %s: %w", types.ErrRemoteUnavailable, b.timeout, err)
	default:
		return fmt.Errorf("%w: %w", types.ErrRemoteUnavailable, err)
	}
}

// List implements types.RemoteStore.
func (b *Bounded) List(ctx context.Context, entity string, filter types.Filter) ([]types.Record, error) {
	return call(ctx, b, func(ctx context.Context) ([]types.Record, error) {
		return b.store.List(ctx, entity, filter)
	})
}

// Get implements types.RemoteStore.
func (b *Bounded) Get(ctx context.Context, entity, id string) (types.Record, error) {
	return call(ctx, b, func(ctx context.Context) (types.Record, error) {
		return b.store.Get(ctx, entity, id)
	})
}

// Create implements types.RemoteStore.
func (b *Bounded) Create(ctx context.Context, entity string, record types.Record) (types.Record, error) {
	return call(ctx, b, func(ctx context.Context) (types.Record, error) {
		return b.store.Create(ctx, entity, record)
	})
}

// Update implements types.RemoteStore.
func (b *Bounded) Update(ctx context.Context, entity, id string, fields map[string]any, updatedAt time.Time) (types.Record, error) {
	return call(ctx, b, func(ctx context.Context) (types.Record, error) {
		return b.store.Update(ctx, entity, id, fields, updatedAt)
	})
}

// Delete implements types.RemoteStore.
func (b *Bounded) Delete(ctx context.Context, entity, id string) error {
	_, err := call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.store.Delete(ctx, entity, id)
	})
	return err
}

// BulkCreate implements types.RemoteStore.
func (b *Bounded) BulkCreate(ctx context.Context, entity string, records []types.Record) ([]types.Record, error) {
	return call(ctx, b, func(ctx context.Context) ([]types.Record, error) {
		return b.store.BulkCreate(ctx, entity, records)
	})
}

// Close implements types.RemoteStore.
func (b *Bounded) Close() error {
	return b.store.Close()
}
