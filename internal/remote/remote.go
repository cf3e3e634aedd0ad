// Package remote opens the remote store named by configuration and bounds
// every call with a timeout.
package remote

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/casebook/internal/remote/dynamo"
	"github.com/mesh-intelligence/casebook/internal/remote/memory"
	"github.com/mesh-intelligence/casebook/internal/remote/postgres"
	"github.com/mesh-intelligence/casebook/internal/remote/redis"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

// Open connects to the remote store selected by cfg.Remote.Driver and
// wraps it with NewBounded.
func Open(ctx context.Context, cfg types.Config, logger *slog.Logger) (*Bounded, error) {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	var (
		store types.RemoteStore
		err   error
	)
	switch cfg.Remote.Driver {
	case types.RemoteMemory:
		store = memory.New()
	case types.RemotePostgres:
		store, err = openPostgres(ctx, cfg.Remote)
	case types.RemoteDynamo:
		store, err = openDynamo(ctx, cfg.Remote)
	case types.RemoteRedis:
		store = redis.New(redis.Options{Addr: cfg.Remote.Addr})
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrRemoteDriverUnknown, cfg.Remote.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s remote: %w", cfg.Remote.Driver, err)
	}
	logger.DebugContext(ctx, "remote store opened", "driver", cfg.Remote.Driver, "timeout", cfg.Remote.Timeout)
	return NewBounded(store, cfg.Remote.Timeout), nil
}

func openPostgres(ctx context.Context, rc types.RemoteConfig) (types.RemoteStore, error) {
	s, err := postgres.Open(ctx, rc.DSN)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openDynamo(ctx context.Context, rc types.RemoteConfig) (types.RemoteStore, error) {
	s, err := dynamo.Open(ctx, dynamo.Options{Table: rc.Table, Region: rc.Region, Endpoint: rc.Endpoint})
	if err != nil {
		return nil, err
	}
	return s, nil
}
