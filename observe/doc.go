// Package observe provides observability primitives for cache operations.
//
// It is a pure instrumentation library: structured JSON logging, OpenTelemetry
// metrics for lookups, removals and computations, and tracing spans around
// get-or-compute suppliers. Caches receive a *Telemetry through their
// configuration; nothing in this package touches cache state.
package observe
