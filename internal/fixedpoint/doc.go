// Package fixedpoint implements signed fixed-point arithmetic on 18-decimal
// scaled integers.
//
// A Value v represents the real number v.Raw() / 10^18. Results are kept
// inside the signed 256-bit range; anything outside it is reported as
// ErrOverflow rather than wrapped or clamped.
//
// Conventions:
//   - Mul and Div truncate toward zero (a*b/10^18, a*10^18/b)
//   - Ln and Exp work internally at 36 decimals and round to nearest
//   - No float64 takes part in any result; Float64 exists for reporting only
package fixedpoint
