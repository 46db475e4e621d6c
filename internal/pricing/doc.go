// Package pricing implements European option pricing under Black-Scholes
// using fixed-point arithmetic and a table-based normal CDF.
//
// Inputs and results are fixedpoint.Value (18 decimals). N(d) is looked up
// in a CDF with a configurable result precision (24 decimals by default),
// and d is truncated to the CDF's 15-decimal z precision before lookup.
package pricing
