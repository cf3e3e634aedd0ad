// Snapshot command copies remote records into the local store.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/casebook/pkg/casebook"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [entity...]",
	Short: "Copy remote records into the local fallback store",
	Long: `Snapshot replaces the local copy of each remote-primary entity with the
records currently held remotely, so reads can fall back to it during an
outage. Without arguments every remote-primary entity with fallback is
copied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		entities := args
		if len(entities) == 0 {
			entities = fallbackEntities(cb)
		}

		counts := make(map[string]int, len(entities))
		for _, name := range entities {
			n, err := cb.Snapshot(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", name, err)
			}
			counts[name] = n
			if !flagJSON {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %d\n", name, n)
			}
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), counts)
		}
		return nil
	},
}

// fallbackEntities lists the remote-primary entities that fall back to the
// local snapshot.
func fallbackEntities(cb *casebook.Casebook) []string {
	var names []string
	for _, name := range cb.Entities() {
		s, err := cb.Schema(name)
		if err != nil {
			continue
		}
		if s.Category == types.CategoryRemotePrimary && s.Fallback {
			names = append(names, name)
		}
	}
	return names
}

// refreshSnapshots snapshots every fallback entity each interval until ctx
// is done. Failures are logged and retried on the next tick.
func refreshSnapshots(ctx context.Context, cb *casebook.Casebook, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, name := range fallbackEntities(cb) {
			n, err := cb.Snapshot(ctx, name)
			if err != nil {
				logger.Warn("snapshot refresh failed", "entity", name, "error", err)
				continue
			}
			logger.Debug("snapshot refreshed", "entity", name, "records", n)
		}
	}
}
