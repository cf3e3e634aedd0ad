// Package casebook is the public entry point. Open wires the local record
// store, the remote store, the reconciliation policy and the repository
// facade from a types.Config.
//
// Example:
//
//	cb, err := casebook.Open(ctx, types.Config{DataDir: ".casebook-data"})
//	if err != nil {
//	    return err
//	}
//	defer cb.Close()
//	c, err := cb.Create(ctx, types.EntityCases, map[string]any{"debtor_name": "Jane Doe"})
package casebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/casebook/internal/audit"
	"github.com/mesh-intelligence/casebook/internal/catalog"
	"github.com/mesh-intelligence/casebook/internal/dashboard"
	"github.com/mesh-intelligence/casebook/internal/local"
	"github.com/mesh-intelligence/casebook/internal/metrics"
	"github.com/mesh-intelligence/casebook/internal/reconcile"
	"github.com/mesh-intelligence/casebook/internal/remote"
	"github.com/mesh-intelligence/casebook/internal/repository"
	"github.com/mesh-intelligence/casebook/internal/session"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

// Version is the casebook release.
const Version = "0.3.0"

// Casebook is an open repository. Its Repository methods serve every
// entity in the catalog.
type Casebook struct {
	*repository.Repository

	Sessions *session.Manager

	local  types.RecordStore
	remote types.RemoteStore
}

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	overrides  string
	local      types.RecordStore
	remote     types.RemoteStore
	clock      func() time.Time
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the repository's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithOverrides applies the entity overrides file at path. A missing file
// is ignored.
func WithOverrides(path string) Option {
	return func(o *options) { o.overrides = path }
}

// WithLocalStore uses store instead of the one named by the config.
func WithLocalStore(store types.RecordStore) Option {
	return func(o *options) { o.local = store }
}

// WithRemoteStore uses store, bounded by the configured timeout, instead
// of the one named by the config.
func WithRemoteStore(store types.RemoteStore) Option {
	return func(o *options) { o.remote = store }
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// Open validates cfg and connects both stores.
func Open(ctx context.Context, cfg types.Config, opts ...Option) (*Casebook, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg = cfg.WithDefaults()

	o := options{logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	cat := catalog.Standard()
	if o.overrides != "" {
		if err := cat.ApplyOverrides(o.overrides); err != nil {
			return nil, err
		}
	}

	localStore := o.local
	if localStore == nil {
		s, err := local.Open(ctx, cfg, o.logger)
		if err != nil {
			return nil, err
		}
		localStore = s
	}

	var remoteStore types.RemoteStore
	if o.remote != nil {
		remoteStore = remote.NewBounded(o.remote, cfg.Remote.Timeout)
	} else {
		s, err := remote.Open(ctx, cfg, o.logger)
		if err != nil {
			_ = localStore.Close()
			return nil, err
		}
		remoteStore = s
	}

	m := metrics.New(o.registerer)
	policy := reconcile.New(localStore, remoteStore,
		reconcile.WithLogger(o.logger),
		reconcile.WithMetrics(m),
	)
	repo := repository.New(cat, policy,
		repository.WithLogger(o.logger),
		repository.WithMetrics(m),
		repository.WithClock(o.clock),
		repository.WithHook(types.EntityCases, audit.HookName, audit.CaseCreated),
	)

	return &Casebook{
		Repository: repo,
		Sessions:   session.NewManager(repo, session.WithClock(o.clock), session.WithLogger(o.logger)),
		local:      localStore,
		remote:     remoteStore,
	}, nil
}

// Dashboard loads cases and payments concurrently and summarizes them.
func (c *Casebook) Dashboard(ctx context.Context, opts dashboard.Options) (dashboard.Summary, error) {
	var cases, payments []types.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cases, err = c.List(gctx, types.EntityCases, "")
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = c.List(gctx, types.EntityPayments, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return dashboard.Summary{}, err
	}
	return dashboard.Summarize(cases, payments, opts), nil
}

// Close releases both stores.
func (c *Casebook) Close() error {
	return errors.Join(c.remote.Close(), c.local.Close())
}
