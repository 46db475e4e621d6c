// Package server exposes the engine over HTTP.
//
// Routes:
//
//	GET  /v1/probability?z=&decimals=   cumulative probability (z raw, 15 decimals)
//	POST /v1/price/{kind}               Black-Scholes price
//	POST /v1/iv/{kind}                  implied volatility
//	POST /v1/iv/{kind}/batch            many implied volatility queries
//	POST /v1/iv/closer                  one secant step over a bracket
//	POST /admin/datapoints              write a probability table row
//	POST /admin/acceptable-range        set the solver tolerance
//	GET  /admin/table                   table snapshot
//	GET  /ws/table                      stream of table changes
//	GET  /health, /version, /metrics
//
// Fixed-point numbers travel as decimal strings.
package server
