// Package local selects and opens the local record store.
package local

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/casebook/internal/local/badger"
	"github.com/mesh-intelligence/casebook/internal/local/jsonl"
	"github.com/mesh-intelligence/casebook/internal/local/sqlite"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

// Open returns the record store named by cfg.Local.Driver, rooted at
// cfg.DataDir.
func Open(ctx context.Context, cfg types.Config, logger *slog.Logger) (types.RecordStore, error) {
	cfg = cfg.WithDefaults()

	var (
		store types.RecordStore
		err   error
	)
	switch cfg.Local.Driver {
	case types.LocalJSONL:
		store, err = openJSONL(cfg.DataDir, logger)
	case types.LocalSQLite:
		store, err = openSQLite(ctx, cfg.DataDir, logger)
	case types.LocalBadger:
		store, err = openBadger(cfg.DataDir, logger)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrLocalDriverUnknown, cfg.Local.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Local.Driver, err)
	}
	return store, nil
}

func openJSONL(dir string, logger *slog.Logger) (types.RecordStore, error) {
	s, err := jsonl.New(dir, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openSQLite(ctx context.Context, dir string, logger *slog.Logger) (types.RecordStore, error) {
	s, err := sqlite.Open(ctx, dir, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openBadger(dir string, logger *slog.Logger) (types.RecordStore, error) {
	path := ""
	if dir != "" {
		path = badger.DataPath(dir)
	}
	s, err := badger.Open(badger.Options{Path: path, Logger: logger})
	if err != nil {
		return nil, err
	}
	return s, nil
}
