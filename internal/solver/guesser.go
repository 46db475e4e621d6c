package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/ivengine/internal/fixedpoint"
	"github.com/rickgao/ivengine/internal/metrics"
	"github.com/rickgao/ivengine/internal/model"
	"github.com/rickgao/ivengine/internal/registry"
)

const (
	DefaultAcceptableRangeBps = 10
	MinAcceptableRangeBps     = 10
	MaxAcceptableRangeBps     = 10000

	DefaultMaxIterations = 64
	MaxMaxIterations     = 1024

	DefaultStepBps = 1000

	bpsDenominator = 10000
)

var (
	// ErrInvalidGuess is returned for a non-positive initial guess.
	ErrInvalidGuess = errors.New("solver: initial guess must be positive")

	// ErrNonConvergence is returned when the search cannot make progress
	// or exhausts its iteration budget.
	ErrNonConvergence = errors.New("solver: implied volatility did not converge")

	// ErrInvalidParameter is returned for an out-of-range target price or
	// convergence setting.
	ErrInvalidParameter = errors.New("solver: invalid parameter")
)

// Pricer prices an option for a given set of inputs.
type Pricer interface {
	Price(kind model.OptionKind, in model.PricingInputs) (fixedpoint.Value, error)
}

// Query is one implied volatility request.
type Query struct {
	TargetPrice  fixedpoint.Value `json:"target_price"`
	InitialGuess fixedpoint.Value `json:"initial_guess"`
	Spot         fixedpoint.Value `json:"spot"`
	Strike       fixedpoint.Value `json:"strike"`
	Time         fixedpoint.Value `json:"time"`
	RiskFree     fixedpoint.Value `json:"risk_free"`
}

// DefaultConfig returns the convergence settings used until the registry
// says otherwise.
func DefaultConfig() model.ConvergenceConfig {
	return model.ConvergenceConfig{
		AcceptableRangeBps: DefaultAcceptableRangeBps,
		MaxIterations:      DefaultMaxIterations,
		StepBps:            DefaultStepBps,
	}
}

// Guesser solves for implied volatility. It is safe for concurrent use;
// convergence settings are swapped atomically.
type Guesser struct {
	pricer  Pricer
	params  registry.Params
	logger  *slog.Logger
	metrics *metrics.Metrics

	// mu serializes config updates; solves only load cfg.
	mu  sync.Mutex
	cfg atomic.Pointer[model.ConvergenceConfig]
}

// Option configures a Guesser.
type Option func(*Guesser)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guesser) { g.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guesser) { g.metrics = m }
}

// WithConfig sets the initial convergence settings. New does not check
// them; see ValidateConfig.
func WithConfig(cfg model.ConvergenceConfig) Option {
	return func(g *Guesser) { g.cfg.Store(&cfg) }
}

// New creates a Guesser. params may be nil when settings never change.
func New(pricer Pricer, params registry.Params, opts ...Option) *Guesser {
	g := &Guesser{
		pricer: pricer,
		params: params,
	}
	cfg := DefaultConfig()
	g.cfg.Store(&cfg)

	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Config returns the current convergence settings.
func (g *Guesser) Config() model.ConvergenceConfig {
	return *g.cfg.Load()
}

// PutIV returns the volatility at which the put price matches targetPrice.
func (g *Guesser) PutIV(ctx context.Context, targetPrice, initialGuess, spot, strike, timeToExpiry, riskFree fixedpoint.Value) (model.IVResult, error) {
	return g.Solve(ctx, model.Put, Query{
		TargetPrice:  targetPrice,
		InitialGuess: initialGuess,
		Spot:         spot,
		Strike:       strike,
		Time:         timeToExpiry,
		RiskFree:     riskFree,
	})
}

// CallIV returns the volatility at which the call price matches targetPrice.
func (g *Guesser) CallIV(ctx context.Context, targetPrice, initialGuess, spot, strike, timeToExpiry, riskFree fixedpoint.Value) (model.IVResult, error) {
	return g.Solve(ctx, model.Call, Query{
		TargetPrice:  targetPrice,
		InitialGuess: initialGuess,
		Spot:         spot,
		Strike:       strike,
		Time:         timeToExpiry,
		RiskFree:     riskFree,
	})
}

// Solve runs the search for one option kind.
func (g *Guesser) Solve(ctx context.Context, kind model.OptionKind, q Query) (model.IVResult, error) {
	start := time.Now()
	cfg := g.Config()

	res, err := g.solve(ctx, kind, q, cfg)

	outcome := metrics.OutcomeConverged
	switch {
	case err == nil:
	case errors.Is(err, ErrNonConvergence):
		outcome = metrics.OutcomeNonConvergence
	case errors.Is(err, ErrInvalidGuess), errors.Is(err, ErrInvalidParameter), errors.Is(err, fixedpoint.ErrDomain):
		outcome = metrics.OutcomeInvalid
	default:
		outcome = metrics.OutcomeError
	}
	g.metrics.ObserveSolve(string(kind), outcome, res.Iterations, time.Since(start))

	if err != nil {
		g.logger.Debug("implied volatility search failed",
			"kind", kind,
			"target", q.TargetPrice,
			"initial_guess", q.InitialGuess,
			"error", err,
		)
		return model.IVResult{}, err
	}

	g.logger.Debug("implied volatility converged",
		"kind", kind,
		"target", q.TargetPrice,
		"iv", res.Guess,
		"price", res.Price,
		"iterations", res.Iterations,
		"duration", time.Since(start),
	)
	return res, nil
}

func (g *Guesser) solve(ctx context.Context, kind model.OptionKind, q Query, cfg model.ConvergenceConfig) (model.IVResult, error) {
	if q.InitialGuess.Sign() <= 0 {
		return model.IVResult{}, fmt.Errorf("%w: got %s", ErrInvalidGuess, q.InitialGuess)
	}
	if q.TargetPrice.Sign() <= 0 {
		return model.IVResult{}, fmt.Errorf("%w: target price must be positive, got %s", ErrInvalidParameter, q.TargetPrice)
	}

	in := model.PricingInputs{
		Spot:     q.Spot,
		Strike:   q.Strike,
		RiskFree: q.RiskFree,
		Time:     q.Time,
	}
	price := func(sigma fixedpoint.Value) (model.Sample, error) {
		in.Sigma = sigma
		p, err := g.pricer.Price(kind, in)
		if err != nil {
			return model.Sample{}, fmt.Errorf("price at sigma %s: %w", sigma, err)
		}
		return model.Sample{Guess: sigma, Price: p}, nil
	}
	done := func(s model.Sample, iterations uint32) (model.IVResult, bool) {
		if WithinRange(s.Price, q.TargetPrice, cfg.AcceptableRangeBps) {
			return model.IVResult{Iterations: iterations, Price: s.Price, Guess: s.Guess}, true
		}
		return model.IVResult{}, false
	}

	first, err := price(q.InitialGuess)
	if err != nil {
		return model.IVResult{}, err
	}
	if res, ok := done(first, 0); ok {
		return res, nil
	}

	second, err := price(secondGuess(first, q.TargetPrice, cfg.StepBps))
	if err != nil {
		return model.IVResult{}, err
	}
	iterations := uint32(1)
	if res, ok := done(second, iterations); ok {
		return res, nil
	}

	bracket := model.NewBracket(first, second)
	for iterations < cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return model.IVResult{Iterations: iterations}, err
		}

		next, err := CloserIV(bracket, q.TargetPrice)
		if err != nil {
			return model.IVResult{Iterations: iterations}, err
		}
		if next.Sign() <= 0 {
			// Extrapolated past zero volatility: halve the smaller guess instead.
			next, _ = fixedpoint.Div(bracket.Lower.Guess, fixedpoint.Two)
			if next.Sign() <= 0 {
				return model.IVResult{Iterations: iterations}, fmt.Errorf("%w: guess collapsed to zero", ErrNonConvergence)
			}
		}

		iterations++
		s, err := price(next)
		if err != nil {
			return model.IVResult{Iterations: iterations}, err
		}
		if res, ok := done(s, iterations); ok {
			return res, nil
		}
		bracket = Advance(bracket, s, q.TargetPrice)
	}

	return model.IVResult{Iterations: iterations}, fmt.Errorf("%w: %d iterations exhausted, bracket [%s, %s]",
		ErrNonConvergence, iterations, bracket.Lower.Guess, bracket.Higher.Guess)
}

// secondGuess moves the first guess by stepBps of itself toward the target.
func secondGuess(first model.Sample, target fixedpoint.Value, stepBps uint32) fixedpoint.Value {
	step, _ := fixedpoint.MulDiv(first.Guess, fixedpoint.FromRawInt64(int64(stepBps)), fixedpoint.FromRawInt64(bpsDenominator))
	if first.Price.Cmp(target) < 0 {
		g, _ := fixedpoint.Add(first.Guess, step)
		return g
	}
	g, _ := fixedpoint.Sub(first.Guess, step)
	if g.Sign() <= 0 {
		g, _ = fixedpoint.Div(first.Guess, fixedpoint.Two)
	}
	return g
}

// UpdateAcceptableRange reloads the tolerance from the registry.
// An out-of-range value is rejected and the current tolerance kept.
func (g *Guesser) UpdateAcceptableRange(ctx context.Context) (uint32, error) {
	v, err := g.readParam(ctx, registry.KeyAcceptableRangeBps)
	if err != nil {
		return 0, err
	}
	if err := ValidateAcceptableRange(v); err != nil {
		return 0, err
	}

	g.update(func(cfg *model.ConvergenceConfig) { cfg.AcceptableRangeBps = uint32(v) })
	g.logger.Info("acceptable range updated", "bps", v)
	return uint32(v), nil
}

// UpdateConvergence reloads the iteration budget from the registry.
func (g *Guesser) UpdateConvergence(ctx context.Context) (uint32, error) {
	v, err := g.readParam(ctx, registry.KeyMaxIterations)
	if err != nil {
		return 0, err
	}
	if err := ValidateMaxIterations(v); err != nil {
		return 0, err
	}

	g.update(func(cfg *model.ConvergenceConfig) { cfg.MaxIterations = uint32(v) })
	g.logger.Info("max iterations updated", "max_iterations", v)
	return uint32(v), nil
}

func (g *Guesser) readParam(ctx context.Context, key string) (uint64, error) {
	if g.params == nil {
		return 0, fmt.Errorf("read %s: no parameter registry configured", key)
	}
	v, err := g.params.Uint(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

func (g *Guesser) update(fn func(*model.ConvergenceConfig)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cfg := *g.cfg.Load()
	fn(&cfg)
	g.cfg.Store(&cfg)
}

// ValidateAcceptableRange checks a tolerance in basis points.
func ValidateAcceptableRange(bps uint64) error {
	if bps < MinAcceptableRangeBps || bps > MaxAcceptableRangeBps {
		return fmt.Errorf("%w: acceptable range %d bps outside [%d, %d]",
			ErrInvalidParameter, bps, MinAcceptableRangeBps, MaxAcceptableRangeBps)
	}
	return nil
}

// ValidateMaxIterations checks an iteration budget.
func ValidateMaxIterations(n uint64) error {
	if n < 1 || n > MaxMaxIterations {
		return fmt.Errorf("%w: max iterations %d outside [1, %d]", ErrInvalidParameter, n, MaxMaxIterations)
	}
	return nil
}

// ValidateConfig checks a full set of convergence settings.
func ValidateConfig(cfg model.ConvergenceConfig) error {
	if err := ValidateAcceptableRange(uint64(cfg.AcceptableRangeBps)); err != nil {
		return err
	}
	if err := ValidateMaxIterations(uint64(cfg.MaxIterations)); err != nil {
		return err
	}
	if cfg.StepBps == 0 || cfg.StepBps >= bpsDenominator {
		return fmt.Errorf("%w: step %d bps outside [1, %d)", ErrInvalidParameter, cfg.StepBps, bpsDenominator)
	}
	return nil
}
