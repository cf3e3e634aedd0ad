// Serve-metrics command exposes repository counters over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Serve Prometheus metrics until interrupted",
	Long: `Serve-metrics opens the repository and serves its counters on
/metrics at metrics_addr. Snapshots of every fallback entity are refreshed
every --refresh interval so the counters reflect remote health.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cb, err := openCasebook(ctx)
		if err != nil {
			return err
		}
		defer cb.Close()

		registry.MustRegister(collectors.NewGoCollector())

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		logger.Info("serving metrics", "addr", metricsListen)
		return serve(ctx, srv, func(ctx context.Context) { refreshSnapshots(ctx, cb, refreshFlag) })
	},
}

// serve runs srv and refresh until ctx is done or the server fails. It
// returns only after the server is shut down and refresh has returned.
func serve(ctx context.Context, srv *http.Server, refresh func(context.Context)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		refresh(ctx)
		return nil
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

var refreshFlag time.Duration

func init() {
	serveMetricsCmd.Flags().DurationVar(&refreshFlag, "refresh", time.Minute, "snapshot refresh interval; 0 disables")
}
