// Package model defines shared data types used across the pricing engine.
//
// Conventions:
//   - Prices, volatilities, rates and times: fixedpoint.Value (18 decimals)
//   - Time to maturity: fraction of a year
//   - Volatility and rates: annualized, as a fraction (1.18 = 118%)
//   - Table probabilities: integer with 5 decimals (99774 = 0.99774)
//   - Tolerances: basis points (10 = 0.1%)
package model
