// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Implied volatility solves by outcome, iteration count and latency
//   - Probability table version and writes
//   - Table change feed subscribers and persistence flushes
//   - HTTP requests by route and status
//
// All Observe/Set helpers are safe on a nil *Metrics.
package metrics
