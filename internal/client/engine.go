package client

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"strconv"

	"github.com/rickgao/ivengine/internal/fixedpoint"
	"github.com/rickgao/ivengine/internal/model"
	"github.com/rickgao/ivengine/internal/solver"
)

// Probability returns P(Z <= z) for z at 15 decimals, scaled to decimals.
func (c *Client) Probability(ctx context.Context, z *big.Int, decimals uint8) (*big.Int, error) {
	query := url.Values{}
	query.Set("z", z.String())
	query.Set("decimals", strconv.Itoa(int(decimals)))

	var resp ProbabilityResponse
	if err := c.get(ctx, "/v1/probability", query, &resp); err != nil {
		return nil, fmt.Errorf("get probability: %w", err)
	}

	p, ok := new(big.Int).SetString(resp.Probability, 10)
	if !ok {
		return nil, fmt.Errorf("get probability: malformed value %q", resp.Probability)
	}
	return p, nil
}

// Price returns the Black-Scholes price of a call or put.
func (c *Client) Price(ctx context.Context, kind model.OptionKind, in model.PricingInputs) (fixedpoint.Value, error) {
	var resp PriceResponse
	if err := c.post(ctx, "/v1/price/"+string(kind), in, &resp); err != nil {
		return fixedpoint.Zero, fmt.Errorf("get %s price: %w", kind, err)
	}
	return resp.Price, nil
}

// IV solves for the implied volatility of one option.
func (c *Client) IV(ctx context.Context, kind model.OptionKind, q solver.Query) (model.IVResult, error) {
	var resp model.IVResult
	if err := c.post(ctx, "/v1/iv/"+string(kind), q, &resp); err != nil {
		return model.IVResult{}, fmt.Errorf("get %s iv: %w", kind, err)
	}
	return resp, nil
}

// IVBatch solves many queries in one request.
func (c *Client) IVBatch(ctx context.Context, kind model.OptionKind, queries []solver.Query) (*BatchResponse, error) {
	var resp BatchResponse
	if err := c.post(ctx, "/v1/iv/"+string(kind)+"/batch", BatchRequest{Queries: queries}, &resp); err != nil {
		return nil, fmt.Errorf("get %s iv batch: %w", kind, err)
	}
	return &resp, nil
}

// CloserIV runs one secant step over the bracket.
func (c *Client) CloserIV(ctx context.Context, b model.Bracket, target fixedpoint.Value) (fixedpoint.Value, error) {
	var resp CloserResponse
	req := CloserRequest{Lower: b.Lower, Higher: b.Higher, Target: target}
	if err := c.post(ctx, "/v1/iv/closer", req, &resp); err != nil {
		return fixedpoint.Zero, fmt.Errorf("get closer iv: %w", err)
	}
	return resp.Guess, nil
}

// SetDataPoint writes one probability table row.
func (c *Client) SetDataPoint(ctx context.Context, p model.DataPoint) (model.TableChange, error) {
	var resp model.TableChange
	if err := c.post(ctx, "/admin/datapoints", p, &resp); err != nil {
		return model.TableChange{}, fmt.Errorf("set data point: %w", err)
	}
	return resp, nil
}

// UpdateConvergence stores new solver settings and returns the settings
// now in effect.
func (c *Client) UpdateConvergence(ctx context.Context, u ConvergenceUpdate) (model.ConvergenceConfig, error) {
	var resp model.ConvergenceConfig
	if err := c.post(ctx, "/admin/acceptable-range", u, &resp); err != nil {
		return model.ConvergenceConfig{}, fmt.Errorf("update convergence: %w", err)
	}
	return resp, nil
}

// Table fetches the probability table.
func (c *Client) Table(ctx context.Context) (*TableSnapshot, error) {
	var resp TableSnapshot
	if err := c.get(ctx, "/admin/table", nil, &resp); err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}
	return &resp, nil
}

// Health fetches the health report. An unhealthy engine returns an APIError.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var resp Health
	if err := c.get(ctx, "/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("get health: %w", err)
	}
	return &resp, nil
}

// Version fetches the engine build information.
func (c *Client) Version(ctx context.Context) (*VersionInfo, error) {
	var resp VersionInfo
	if err := c.get(ctx, "/version", nil, &resp); err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &resp, nil
}
