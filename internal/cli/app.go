package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jonwraymond/cachekit/cache"
	"github.com/jonwraymond/cachekit/health"
	"github.com/jonwraymond/cachekit/observe"
)

// payload is the value type every workload stores. It is a pointer so the
// weak cache can hold it too.
type payload struct {
	key  string
	data [64]byte
}

// app is one configured cache with its telemetry and health checks.
type app struct {
	cfg    Config
	obs    observe.Observer
	logger observe.Logger
	cache  cache.Cache[string, *payload]
	agg    *health.Aggregator
	close  func() error
}

// newApp builds the observer, the cache of the configured kind and the
// health aggregator watching them. logs receives the JSON log lines.
func newApp(ctx context.Context, cfg Config, version string, logs io.Writer) (*app, error) {
	ocfg := cfg.observeConfig(version)
	ocfg.Logging.Writer = logs

	obs, err := observe.NewObserver(ctx, ocfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create observer: %w", err)
	}
	tel, err := observe.TelemetryFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create telemetry: %w", err)
	}

	c, closeFn, err := buildCache(cfg, tel)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	agg := health.NewAggregator()
	agg.Register(cfg.Kind, health.NewCacheChecker(c, health.CacheCheckerConfig{
		Name:          cfg.Kind,
		MaxErrorRatio: 0.5,
	}))
	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{
		HeapBudget: cfg.HeapMB << 20,
	}))

	return &app{
		cfg:    cfg,
		obs:    obs,
		logger: tel.Logger(),
		cache:  c,
		agg:    agg,
		close:  closeFn,
	}, nil
}

// buildCache creates the configured cache variant. The returned function
// releases background resources held by the cache.
func buildCache(cfg Config, tel *observe.Telemetry) (cache.Cache[string, *payload], func() error, error) {
	ccfg := cache.Config[string, *payload]{
		Name:          cfg.Kind,
		Capacity:      cfg.Capacity,
		DefaultTTL:    cfg.TTL,
		MaxTTL:        cfg.MaxTTL,
		Sliding:       cfg.Sliding,
		SweepInterval: cfg.Sweep,
		Telemetry:     tel,
	}
	nop := func() error { return nil }

	switch cfg.Kind {
	case "fifo":
		c, err := cache.NewFIFO(ccfg)
		return c, nop, err
	case "lru":
		c, err := cache.NewLRU(ccfg)
		return c, nop, err
	case "timed":
		c, err := cache.NewTimed(ccfg)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case "weak":
		ccfg.SweepInterval = 0
		c, err := cache.NewWeak(ccfg)
		return c, nop, err
	default:
		return nil, nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, cfg.Kind)
	}
}

// Close stops the cache and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.close(), a.obs.Shutdown(ctx))
}
