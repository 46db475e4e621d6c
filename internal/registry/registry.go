package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/rickgao/ivengine/internal/model"
)

// Parameter keys.
const (
	KeyAcceptableRangeBps = "acceptable_range_bps"
	KeyMaxIterations      = "max_iterations"
)

// ErrNotFound is returned when a parameter key has never been set.
var ErrNotFound = errors.New("registry: key not found")

// Params reads scalar parameters.
type Params interface {
	Uint(ctx context.Context, key string) (uint64, error)
}

// Store is a writable parameter registry that also persists table data points.
type Store interface {
	Params

	SetUint(ctx context.Context, key string, value uint64) error

	// DataPoints returns all persisted data points ordered by bucket.
	DataPoints(ctx context.Context) ([]model.DataPoint, error)

	// PutDataPoints upserts data points by bucket.
	PutDataPoints(ctx context.Context, points []model.DataPoint) error
}

// SeedDefaults sets every key in defaults that the store does not hold yet.
// It returns the number of keys written.
func SeedDefaults(ctx context.Context, s Store, defaults map[string]uint64) (int, error) {
	written := 0
	for key, value := range defaults {
		_, err := s.Uint(ctx, key)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return written, fmt.Errorf("read %s: %w", key, err)
		}
		if err := s.SetUint(ctx, key, value); err != nil {
			return written, fmt.Errorf("seed %s: %w", key, err)
		}
		written++
	}
	return written, nil
}
