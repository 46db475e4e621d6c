package client

import (
	"github.com/rickgao/ivengine/internal/fixedpoint"
	"github.com/rickgao/ivengine/internal/model"
	"github.com/rickgao/ivengine/internal/solver"
)

// ProbabilityResponse is returned by Probability. Z and Probability are
// raw integers at 15 and Decimals decimals respectively.
type ProbabilityResponse struct {
	Z           string `json:"z"`
	Decimals    uint8  `json:"decimals"`
	Probability string `json:"probability"`
}

// PriceResponse is returned by Price.
type PriceResponse struct {
	Kind  model.OptionKind `json:"kind"`
	Price fixedpoint.Value `json:"price"`
}

// BatchRequest is the body of an implied volatility batch.
type BatchRequest struct {
	Queries []solver.Query `json:"queries"`
}

// BatchItem is one query's outcome. Exactly one field is set.
type BatchItem struct {
	Result *model.IVResult `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// BatchResponse is returned by IVBatch in query order.
type BatchResponse struct {
	Kind      model.OptionKind `json:"kind"`
	Converged int              `json:"converged"`
	Results   []BatchItem      `json:"results"`
}

// CloserRequest is the body of a single secant step.
type CloserRequest struct {
	Lower  model.Sample     `json:"lower"`
	Higher model.Sample     `json:"higher"`
	Target fixedpoint.Value `json:"target"`
}

// CloserResponse carries the interpolated guess.
type CloserResponse struct {
	Guess fixedpoint.Value `json:"guess"`
}

// ConvergenceUpdate changes solver settings. MaxIterations is optional.
type ConvergenceUpdate struct {
	AcceptableRangeBps uint64  `json:"acceptable_range_bps"`
	MaxIterations      *uint64 `json:"max_iterations,omitempty"`
}

// TableSnapshot is the probability table at one version.
type TableSnapshot struct {
	Version uint64            `json:"version"`
	Points  []model.DataPoint `json:"points"`
}

// Health is the engine's health report.
type Health struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
}

// VersionInfo describes the engine build.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}
