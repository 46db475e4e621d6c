package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/ivengine/internal/fixedpoint"
)

// -----------------------------------------------------------------------------
// Pricing Types
// -----------------------------------------------------------------------------

// OptionKind selects the call or put side of a European option.
type OptionKind string

const (
	Call OptionKind = "call"
	Put  OptionKind = "put"
)

// ParseOptionKind accepts "call" or "put" in any case.
func ParseOptionKind(s string) (OptionKind, error) {
	switch k := OptionKind(strings.ToLower(s)); k {
	case Call, Put:
		return k, nil
	default:
		return "", fmt.Errorf("unknown option kind %q", s)
	}
}

// PricingInputs are the Black-Scholes inputs for a single option.
type PricingInputs struct {
	Spot     fixedpoint.Value `json:"spot"`      // Underlying price
	Strike   fixedpoint.Value `json:"strike"`    // Strike price
	Sigma    fixedpoint.Value `json:"sigma"`     // Annualized volatility
	RiskFree fixedpoint.Value `json:"risk_free"` // Annualized risk-free rate
	Time     fixedpoint.Value `json:"time"`      // Time to maturity (years)
}

// -----------------------------------------------------------------------------
// Solver Types
// -----------------------------------------------------------------------------

// Sample is one evaluation of the pricing function.
type Sample struct {
	Guess fixedpoint.Value `json:"guess"` // Volatility tried
	Price fixedpoint.Value `json:"price"` // Resulting price
}

// Bracket holds two samples ordered by guess (Lower.Guess <= Higher.Guess).
// With positive vega Lower.Price <= Higher.Price as well.
type Bracket struct {
	Lower  Sample `json:"lower"`
	Higher Sample `json:"higher"`
}

// NewBracket orders a and b by guess.
func NewBracket(a, b Sample) Bracket {
	if a.Guess.Cmp(b.Guess) <= 0 {
		return Bracket{Lower: a, Higher: b}
	}
	return Bracket{Lower: b, Higher: a}
}

// ConvergenceConfig bounds a single implied-volatility search.
type ConvergenceConfig struct {
	AcceptableRangeBps uint32 `json:"acceptable_range_bps"` // Relative price tolerance
	MaxIterations      uint32 `json:"max_iterations"`       // Pricing evaluations after the first
	StepBps            uint32 `json:"step_bps"`             // Size of the second guess relative to the first
}

// IVResult is the outcome of a converged implied-volatility search.
type IVResult struct {
	Iterations uint32           `json:"iterations"` // Evaluations after the initial guess
	Price      fixedpoint.Value `json:"price"`      // Price at Guess
	Guess      fixedpoint.Value `json:"guess"`      // Implied volatility
}

// -----------------------------------------------------------------------------
// Normal Distribution Types
// -----------------------------------------------------------------------------

// DataPoint is one row of the cumulative probability table.
type DataPoint struct {
	Bucket      int64 `json:"bucket" csv:"bucket"`           // z in thousandths (2840 = 2.840)
	Probability int64 `json:"probability" csv:"probability"` // P(Z <= z), 5 decimals
}

// TableChange describes a data point written to the probability table.
type TableChange struct {
	ID       uuid.UUID `json:"id"`
	Bucket   int64     `json:"bucket"`
	Old      int64     `json:"old"`      // Previous probability (0 when inserted)
	New      int64     `json:"new"`      // Probability after the write
	Inserted bool      `json:"inserted"` // true when the bucket did not exist
	Version  uint64    `json:"version"`  // Table version after the write
	At       time.Time `json:"at"`
}
