// Package solver recovers implied volatility from an observed option price.
//
// The Guesser runs a secant / false-position search over volatility:
//  1. Price the initial guess; accept it if it is within tolerance.
//  2. Perturb the guess by StepBps toward the target to form a bracket.
//  3. Interpolate a closer guess (CloserIV), price it, and replace one
//     bracket endpoint (Advance) until a price lands within tolerance or
//     MaxIterations evaluations have been spent.
//
// Tolerance is relative: |price - target| * 10000 <= AcceptableRangeBps * target.
package solver
