package health

import (
	"context"
	"fmt"
	"runtime"
)

// MemoryCheckerConfig configures the memory health checker.
type MemoryCheckerConfig struct {
	// HeapBudget is the heap size in bytes the process is expected to stay
	// under, caches included. 0 reports figures without judging them.
	HeapBudget uint64

	// WarningThreshold is the share of HeapBudget that reports degraded.
	// Default: 0.8
	WarningThreshold float64

	// CriticalThreshold is the share of HeapBudget that reports unhealthy.
	// Default: 0.95
	CriticalThreshold float64
}

// MemoryChecker reports heap use against a budget. In-memory caches grow
// the heap directly, and weakly held values only leave it when the
// collector runs, so the GC count is reported alongside.
type MemoryChecker struct {
	config MemoryCheckerConfig
}

// NewMemoryChecker creates a memory checker.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = min(config.WarningThreshold+0.1, 0.99)
	}
	return &MemoryChecker{config: config}
}

// Name returns the name of this checker.
func (m *MemoryChecker) Name() string {
	return "memory"
}

// Check reads runtime memory statistics.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	details := map[string]any{
		"heap_alloc":   stats.HeapAlloc,
		"heap_objects": stats.HeapObjects,
		"num_gc":       stats.NumGC,
		"goroutines":   runtime.NumGoroutine(),
	}

	budget := m.config.HeapBudget
	if budget == 0 {
		return Healthy(fmt.Sprintf("heap %d bytes, no budget set", stats.HeapAlloc)).WithDetails(details)
	}

	usage := float64(stats.HeapAlloc) / float64(budget)
	details["heap_budget"] = budget
	details["usage_percent"] = usage * 100

	switch {
	case usage >= m.config.CriticalThreshold:
		return Unhealthy(fmt.Sprintf("heap usage critical: %.1f%%", usage*100), ErrCheckFailed).WithDetails(details)
	case usage >= m.config.WarningThreshold:
		return Degraded(fmt.Sprintf("heap usage high: %.1f%%", usage*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("heap usage normal: %.1f%%", usage*100)).WithDetails(details)
	}
}

var _ Checker = (*MemoryChecker)(nil)
