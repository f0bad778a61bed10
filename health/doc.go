// Package health reports the health of caches and the process that hosts them.
//
// A Checker reports a Status: Healthy, Degraded or Unhealthy. CacheChecker
// judges a cache by its fill ratio, hit ratio and computation failures;
// MemoryChecker judges heap use against a budget.
//
// # Aggregating Health Checks
//
//	agg := health.NewAggregator()
//	agg.Register("sessions", health.NewCacheChecker(sessions, health.CacheCheckerConfig{
//	    MinHitRatio: 0.5,
//	}))
//	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{
//	    HeapBudget: 512 << 20,
//	}))
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// # HTTP Endpoints
//
// RegisterHandlers mounts /healthz (liveness), /readyz (readiness),
// /health (all checks as JSON) and /health/{name} (one check).
package health
