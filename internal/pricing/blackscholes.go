package pricing

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/rickgao/ivengine/internal/fixedpoint"
	"github.com/rickgao/ivengine/internal/model"
	"github.com/rickgao/ivengine/internal/normal"
)

// DefaultDecimals is the precision of N(d) used when applying it to prices.
const DefaultDecimals = 24

// ErrUnknownKind is returned by Price for an option kind other than call or put.
var ErrUnknownKind = errors.New("pricing: unknown option kind")

// CDF evaluates the standard normal cumulative distribution.
// z carries normal.ZDecimals fractional digits; the result is scaled to
// 10^decimals.
type CDF interface {
	Probability(z *big.Int, decimals uint8) (*big.Int, error)
}

// Config holds pricer configuration.
type Config struct {
	Decimals uint8 // Precision of N(d) (default: 24)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Decimals: DefaultDecimals}
}

// Pricer prices European calls and puts. It is safe for concurrent use
// when the CDF is.
type Pricer struct {
	cdf      CDF
	decimals uint8
}

// New creates a Pricer. A zero Decimals falls back to DefaultDecimals.
func New(cdf CDF, cfg Config) *Pricer {
	if cfg.Decimals == 0 {
		cfg.Decimals = DefaultDecimals
	}
	return &Pricer{cdf: cdf, decimals: cfg.Decimals}
}

// Decimals returns the N(d) precision.
func (p *Pricer) Decimals() uint8 {
	return p.decimals
}

// Price dispatches to CallPrice or PutPrice.
func (p *Pricer) Price(kind model.OptionKind, in model.PricingInputs) (fixedpoint.Value, error) {
	switch kind {
	case model.Call:
		return p.CallPrice(in)
	case model.Put:
		return p.PutPrice(in)
	default:
		return fixedpoint.Zero, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// CallPrice returns spot*N(d1) - strike*exp(-r*t)*N(d2), floored at zero.
func (p *Pricer) CallPrice(in model.PricingInputs) (fixedpoint.Value, error) {
	t, err := p.terms(in)
	if err != nil {
		return fixedpoint.Zero, err
	}

	n1, err := p.n(t.d1, false)
	if err != nil {
		return fixedpoint.Zero, err
	}
	n2, err := p.n(t.d2, false)
	if err != nil {
		return fixedpoint.Zero, err
	}
	return p.combine(in.Spot, n1, t.discountedStrike, n2)
}

// PutPrice returns strike*exp(-r*t)*N(-d2) - spot*N(-d1), floored at zero.
func (p *Pricer) PutPrice(in model.PricingInputs) (fixedpoint.Value, error) {
	t, err := p.terms(in)
	if err != nil {
		return fixedpoint.Zero, err
	}

	n2, err := p.n(t.d2, true)
	if err != nil {
		return fixedpoint.Zero, err
	}
	n1, err := p.n(t.d1, true)
	if err != nil {
		return fixedpoint.Zero, err
	}
	return p.combine(t.discountedStrike, n2, in.Spot, n1)
}

// terms are the intermediate values shared by calls and puts.
type terms struct {
	d1, d2           fixedpoint.Value
	discountedStrike fixedpoint.Value
}

func (p *Pricer) terms(in model.PricingInputs) (terms, error) {
	if err := validate(in); err != nil {
		return terms{}, err
	}

	sqrtT, err := fixedpoint.Sqrt(in.Time)
	if err != nil {
		return terms{}, fmt.Errorf("sqrt time: %w", err)
	}
	volT, err := fixedpoint.Mul(in.Sigma, sqrtT)
	if err != nil {
		return terms{}, fmt.Errorf("sigma*sqrt(time): %w", err)
	}
	if volT.IsZero() {
		return terms{}, fmt.Errorf("%w: sigma*sqrt(time) rounds to zero", fixedpoint.ErrDomain)
	}

	ratio, err := fixedpoint.Div(in.Spot, in.Strike)
	if err != nil {
		return terms{}, fmt.Errorf("spot/strike: %w", err)
	}
	logRatio, err := fixedpoint.Ln(ratio)
	if err != nil {
		return terms{}, fmt.Errorf("ln(spot/strike): %w", err)
	}

	variance, err := fixedpoint.Pow(in.Sigma, fixedpoint.Two)
	if err != nil {
		return terms{}, fmt.Errorf("sigma^2: %w", err)
	}
	halfVariance, err := fixedpoint.Div(variance, fixedpoint.Two)
	if err != nil {
		return terms{}, err
	}
	drift, err := fixedpoint.Add(in.RiskFree, halfVariance)
	if err != nil {
		return terms{}, fmt.Errorf("drift: %w", err)
	}
	driftT, err := fixedpoint.Mul(drift, in.Time)
	if err != nil {
		return terms{}, fmt.Errorf("drift*time: %w", err)
	}
	num, err := fixedpoint.Add(logRatio, driftT)
	if err != nil {
		return terms{}, fmt.Errorf("d1 numerator: %w", err)
	}

	d1, err := fixedpoint.Div(num, volT)
	if err != nil {
		return terms{}, fmt.Errorf("d1: %w", err)
	}
	d2, err := fixedpoint.Sub(d1, volT)
	if err != nil {
		return terms{}, fmt.Errorf("d2: %w", err)
	}

	rt, err := fixedpoint.Mul(in.RiskFree, in.Time)
	if err != nil {
		return terms{}, fmt.Errorf("rate*time: %w", err)
	}
	negRT, err := fixedpoint.Neg(rt)
	if err != nil {
		return terms{}, err
	}
	discount, err := fixedpoint.Exp(negRT)
	if err != nil {
		return terms{}, fmt.Errorf("discount factor: %w", err)
	}
	kd, err := fixedpoint.Mul(in.Strike, discount)
	if err != nil {
		return terms{}, fmt.Errorf("discounted strike: %w", err)
	}

	return terms{d1: d1, d2: d2, discountedStrike: kd}, nil
}

// n returns N(d), or N(-d) when negate is set, at p.decimals.
func (p *Pricer) n(d fixedpoint.Value, negate bool) (*big.Int, error) {
	z := fixedpoint.Rescale(d, normal.ZDecimals)
	if negate {
		z.Neg(z)
	}
	prob, err := p.cdf.Probability(z, p.decimals)
	if err != nil {
		return nil, fmt.Errorf("normal cdf: %w", err)
	}
	return prob, nil
}

// combine returns a*na - b*nb, floored at zero.
func (p *Pricer) combine(a fixedpoint.Value, na *big.Int, b fixedpoint.Value, nb *big.Int) (fixedpoint.Value, error) {
	left, err := fixedpoint.MulScaled(a, na, p.decimals)
	if err != nil {
		return fixedpoint.Zero, err
	}
	right, err := fixedpoint.MulScaled(b, nb, p.decimals)
	if err != nil {
		return fixedpoint.Zero, err
	}
	price, err := fixedpoint.Sub(left, right)
	if err != nil {
		return fixedpoint.Zero, err
	}
	if price.Sign() < 0 {
		return fixedpoint.Zero, nil
	}
	return price, nil
}

func validate(in model.PricingInputs) error {
	switch {
	case in.Spot.Sign() <= 0:
		return fmt.Errorf("%w: spot must be positive, got %s", fixedpoint.ErrDomain, in.Spot)
	case in.Strike.Sign() <= 0:
		return fmt.Errorf("%w: strike must be positive, got %s", fixedpoint.ErrDomain, in.Strike)
	case in.Sigma.Sign() <= 0:
		return fmt.Errorf("%w: sigma must be positive, got %s", fixedpoint.ErrDomain, in.Sigma)
	case in.Time.Sign() <= 0:
		return fmt.Errorf("%w: time must be positive, got %s", fixedpoint.ErrDomain, in.Time)
	}
	return nil
}
