// Package normal approximates the standard normal cumulative distribution
// function with a lookup table and linear interpolation, in integer
// arithmetic only.
//
// Table layout:
//   - Buckets: z-scores in thousandths (bucket 2840 = z of 2.840)
//   - Probabilities: P(Z <= z) with 5 decimals (99774 = 0.99774)
//   - Default table: buckets 0..4000, embedded from data/cdf_table.csv
//
// Queries take z with ZDecimals (15) fractional digits and answer with a
// caller-chosen number of decimals in [4, 76]. Negative z is answered by
// symmetry, and z beyond the last bucket saturates at the last probability.
//
// A Table is safe for concurrent use: SetDataPoint publishes a new
// immutable snapshot, so readers never observe a partially applied write.
package normal
