package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/cachekit/cache"
	"github.com/jonwraymond/cachekit/health"
	"github.com/jonwraymond/cachekit/observe"
)

// BenchResult is the JSON document printed by cachectl bench.
type BenchResult struct {
	Kind     string                `json:"kind"`
	Capacity int                   `json:"capacity"`
	Len      int                   `json:"len"`
	Workload Report                `json:"workload"`
	Stats    cache.Stats           `json:"stats"`
	HitRatio float64               `json:"hit_ratio"`
	Health   health.HealthResponse `json:"health"`
}

func newBenchCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Run one workload and print stats and health as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFor(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a, err := newApp(ctx, cfg, version, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(context.WithoutCancel(ctx)); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: shutdown: %v\n", err)
				}
			}()

			result, err := a.bench(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

// bench runs the workload once and collects the results.
func (a *app) bench(ctx context.Context) (BenchResult, error) {
	a.logger.Info(ctx, "workload starting",
		observe.Field{Key: "kind", Value: a.cfg.Kind},
		observe.Field{Key: "workers", Value: a.cfg.Workers},
		observe.Field{Key: "ops", Value: a.cfg.Ops},
	)
	report, err := newWorkload(a.cfg).Run(ctx, a.cache)
	if err != nil {
		return BenchResult{}, fmt.Errorf("workload failed: %w", err)
	}
	a.logger.Info(ctx, "workload finished",
		observe.Field{Key: "ops", Value: report.Ops},
		observe.Field{Key: "elapsed", Value: report.Elapsed.String()},
	)

	stats := a.cache.Stats()
	return BenchResult{
		Kind:     a.cfg.Kind,
		Capacity: a.cache.Capacity(),
		Len:      a.cache.Len(),
		Workload: report,
		Stats:    stats,
		HitRatio: stats.HitRatio(),
		Health:   health.Report(ctx, a.agg),
	}, nil
}
