package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/cachekit/health"
	"github.com/jonwraymond/cachekit/observe"
)

func newServeCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workload in a loop and serve metrics and health over HTTP",
		Long: `serve repeats the workload until interrupted and exposes
/metrics (with --metrics=prometheus), /healthz, /readyz, /health and /health/{name}.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFor(cmd)
			if err != nil {
				return err
			}
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, version, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(context.WithoutCancel(ctx)); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: shutdown: %v\n", err)
				}
			}()
			return a.serve(ctx)
		},
	}
}

// newMux mounts the health endpoints, and /metrics when the prometheus
// exporter is in use.
func (a *app) newMux() *http.ServeMux {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, a.agg)
	if a.cfg.Metrics == "prometheus" {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	return mux
}

// serve runs the HTTP server and the workload loop until ctx is done.
func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           a.newMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info(gctx, "serving", observe.Field{Key: "addr", Value: a.cfg.Listen})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return a.loop(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loop repeats the workload until ctx is done, logging each run.
func (a *app) loop(ctx context.Context) error {
	w := newWorkload(a.cfg)
	for run := 1; ; run++ {
		report, err := w.Run(ctx, a.cache)
		if err != nil {
			return err
		}
		stats := a.cache.Stats()
		a.logger.Info(ctx, "workload run finished",
			observe.Field{Key: "run", Value: run},
			observe.Field{Key: "ops_per_second", Value: report.OpsPerSecond},
			observe.Field{Key: "hit_ratio", Value: stats.HitRatio()},
			observe.Field{Key: "len", Value: a.cache.Len()},
		)
		if pruned := a.cache.Prune(ctx); pruned > 0 {
			a.logger.Debug(ctx, "pruned entries", observe.Field{Key: "removed", Value: pruned})
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
