package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonwraymond/cachekit/cache"
)

// CacheSource is the part of a cache a CacheChecker reads. Every cache
// variant satisfies it.
type CacheSource interface {
	Len() int
	Capacity() int
	Stats() cache.Stats
}

// CacheCheckerConfig configures a CacheChecker.
type CacheCheckerConfig struct {
	// Name identifies the checker.
	// Default: "cache"
	Name string

	// WarningThreshold is the fill ratio of a bounded cache that reports
	// degraded. Value should be in (0, 1]. Default: 0.9
	WarningThreshold float64

	// MinHitRatio reports degraded when the hit ratio falls below it.
	// 0 disables the check.
	MinHitRatio float64

	// MaxErrorRatio reports unhealthy when the share of failed
	// computations exceeds it. 0 disables the check.
	MaxErrorRatio float64

	// MinSamples is how many lookups or computations are needed before the
	// ratios are judged. Default: 100
	MinSamples uint64
}

// CacheChecker reports cache saturation, hit ratio and computation failures.
type CacheChecker struct {
	source CacheSource
	config CacheCheckerConfig
}

// NewCacheChecker creates a checker over source.
func NewCacheChecker(source CacheSource, config CacheCheckerConfig) *CacheChecker {
	if config.Name == "" {
		config.Name = "cache"
	}
	if config.WarningThreshold <= 0 || config.WarningThreshold > 1 {
		config.WarningThreshold = 0.9
	}
	if config.MinSamples == 0 {
		config.MinSamples = 100
	}
	return &CacheChecker{source: source, config: config}
}

// Name returns the configured checker name.
func (c *CacheChecker) Name() string {
	return c.config.Name
}

// Check reads the cache counters and judges them against the thresholds.
func (c *CacheChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	n, capacity := c.source.Len(), c.source.Capacity()
	stats := c.source.Stats()

	details := map[string]any{
		"len":            n,
		"capacity":       capacity,
		"hits":           stats.Hits,
		"misses":         stats.Misses,
		"hit_ratio":      stats.HitRatio(),
		"evictions":      stats.Evictions,
		"expirations":    stats.Expirations,
		"collections":    stats.Collections,
		"removals":       stats.Removals,
		"computations":   stats.Computations,
		"compute_errors": stats.ComputeErrors,
	}

	status := StatusHealthy
	var problems []string

	if capacity > 0 {
		fill := float64(n) / float64(capacity)
		details["fill_ratio"] = fill
		if fill >= c.config.WarningThreshold {
			status = status.worse(StatusDegraded)
			problems = append(problems, fmt.Sprintf("cache %.1f%% full", fill*100))
		}
	}

	if c.config.MinHitRatio > 0 && stats.Lookups() >= c.config.MinSamples {
		if ratio := stats.HitRatio(); ratio < c.config.MinHitRatio {
			status = status.worse(StatusDegraded)
			problems = append(problems, fmt.Sprintf("hit ratio %.2f below %.2f", ratio, c.config.MinHitRatio))
		}
	}

	if attempts := stats.Computations + stats.ComputeErrors; c.config.MaxErrorRatio > 0 && attempts >= c.config.MinSamples {
		if ratio := float64(stats.ComputeErrors) / float64(attempts); ratio > c.config.MaxErrorRatio {
			status = status.worse(StatusUnhealthy)
			problems = append(problems, fmt.Sprintf("computation error ratio %.2f above %.2f", ratio, c.config.MaxErrorRatio))
		}
	}

	switch status {
	case StatusUnhealthy:
		return Unhealthy(strings.Join(problems, "; "), ErrCheckFailed).WithDetails(details)
	case StatusDegraded:
		return Degraded(strings.Join(problems, "; ")).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("%d entries", n)).WithDetails(details)
	}
}

var _ Checker = (*CacheChecker)(nil)
