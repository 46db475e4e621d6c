// Package registry stores the engine's tunable parameters and the
// persisted probability table overrides.
//
// Two stores are provided:
//   - MemoryStore: process-local, used in tests and when no database is configured
//   - PostgresStore: engine_params and cdf_datapoints tables via pgx
//
// Parameters are unsigned integers addressed by key (see the Key constants).
package registry
