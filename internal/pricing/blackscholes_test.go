package pricing

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rickgao/ivengine/internal/fixedpoint"
	"github.com/rickgao/ivengine/internal/model"
	"github.com/rickgao/ivengine/internal/normal"
)

func newTestPricer() *Pricer {
	return New(normal.Default(), DefaultConfig())
}

func inputs(t *testing.T, spot, strike, sigma, rate string, time fixedpoint.Value) model.PricingInputs {
	t.Helper()
	return model.PricingInputs{
		Spot:     fixedpoint.MustParse(spot),
		Strike:   fixedpoint.MustParse(strike),
		Sigma:    fixedpoint.MustParse(sigma),
		RiskFree: fixedpoint.MustParse(rate),
		Time:     time,
	}
}

func days(t *testing.T, d string) fixedpoint.Value {
	t.Helper()
	v, err := fixedpoint.Div(fixedpoint.MustParse(d), fixedpoint.New(365))
	if err != nil {
		t.Fatalf("Div error: %v", err)
	}
	return v
}

// floatPrice is the closed-form price in float64, used as a reference only.
func floatPrice(kind model.OptionKind, in model.PricingInputs) float64 {
	s, k, v, r, t := in.Spot.Float64(), in.Strike.Float64(), in.Sigma.Float64(), in.RiskFree.Float64(), in.Time.Float64()
	d1 := (math.Log(s/k) + (r+v*v/2)*t) / (v * math.Sqrt(t))
	d2 := d1 - v*math.Sqrt(t)
	n := distuv.UnitNormal
	if kind == model.Call {
		return s*n.CDF(d1) - k*math.Exp(-r*t)*n.CDF(d2)
	}
	return k*math.Exp(-r*t)*n.CDF(-d2) - s*n.CDF(-d1)
}

func TestPutPrice_ShortDatedHighVol(t *testing.T) {
	p := newTestPricer()
	in := inputs(t, "368", "320", "1.18", "0", days(t, "6.5"))

	got, err := p.PutPrice(in)
	if err != nil {
		t.Fatalf("PutPrice error: %v", err)
	}

	if got.Cmp(fixedpoint.MustParse("5.53")) < 0 || got.Cmp(fixedpoint.MustParse("5.56")) > 0 {
		t.Errorf("PutPrice = %s, want about 5.54", got)
	}

	want := floatPrice(model.Put, in)
	if rel := math.Abs(got.Float64()-want) / want; rel > 0.01 {
		t.Errorf("PutPrice = %s, float reference %.6f (rel diff %.4f)", got, want, rel)
	}
}

func TestPrice_MatchesFloatReference(t *testing.T) {
	p := newTestPricer()

	tests := []struct {
		name string
		in   model.PricingInputs
	}{
		{"at the money", inputs(t, "100", "100", "0.2", "0.05", fixedpoint.MustParse("0.5"))},
		{"in the money call", inputs(t, "120", "100", "0.35", "0.03", fixedpoint.New(1))},
		{"out of the money call", inputs(t, "10500", "11000", "1.2", "0", fixedpoint.MustParse("0.03836"))},
		{"negative rate", inputs(t, "50", "60", "0.3", "-0.01", fixedpoint.New(2))},
	}

	for _, tt := range tests {
		for _, kind := range []model.OptionKind{model.Call, model.Put} {
			t.Run(tt.name+"/"+string(kind), func(t *testing.T) {
				got, err := p.Price(kind, tt.in)
				if err != nil {
					t.Fatalf("Price error: %v", err)
				}
				want := floatPrice(kind, tt.in)
				// Table resolution is 1e-5 in probability.
				tol := 1e-4*tt.in.Spot.Float64() + 1e-9
				if diff := math.Abs(got.Float64() - want); diff > tol {
					t.Errorf("Price = %s, float reference %.8f (diff %.3g > %.3g)", got, want, diff, tol)
				}
			})
		}
	}
}

func TestPutCallParity(t *testing.T) {
	p := newTestPricer()

	tests := []struct {
		name string
		in   model.PricingInputs
	}{
		{"at the money", inputs(t, "100", "100", "0.2", "0.05", fixedpoint.MustParse("0.5"))},
		{"short dated", inputs(t, "368", "320", "1.18", "0", days(t, "6.5"))},
		{"negative rate", inputs(t, "50", "60", "0.3", "-0.01", fixedpoint.New(2))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := p.CallPrice(tt.in)
			if err != nil {
				t.Fatalf("CallPrice error: %v", err)
			}
			put, err := p.PutPrice(tt.in)
			if err != nil {
				t.Fatalf("PutPrice error: %v", err)
			}

			rt, _ := fixedpoint.Mul(tt.in.RiskFree, tt.in.Time)
			negRT, _ := fixedpoint.Neg(rt)
			discount, err := fixedpoint.Exp(negRT)
			if err != nil {
				t.Fatalf("Exp error: %v", err)
			}
			kd, _ := fixedpoint.Mul(tt.in.Strike, discount)
			forward, _ := fixedpoint.Sub(tt.in.Spot, kd)
			diff, _ := fixedpoint.Sub(call, put)
			gap, _ := fixedpoint.Sub(diff, forward)
			gap, _ = fixedpoint.Abs(gap)

			if gap.Raw().Cmp(big.NewInt(10)) > 0 {
				t.Errorf("call - put = %s, spot - K*exp(-rt) = %s (gap %s raw units)", diff, forward, gap.Raw())
			}
		})
	}
}

func TestCallPrice_MonotoneInSigma(t *testing.T) {
	p := newTestPricer()

	cases := []model.PricingInputs{
		inputs(t, "100", "100", "0", "0.05", fixedpoint.MustParse("0.5")),
		inputs(t, "10500", "11000", "0", "0", fixedpoint.MustParse("0.03836")),
		inputs(t, "368", "320", "0", "0", days(t, "6.5")),
	}

	for _, in := range cases {
		prev := fixedpoint.Zero
		for i := int64(1); i <= 40; i++ {
			sigma, _ := fixedpoint.Div(fixedpoint.New(i*5), fixedpoint.New(100))
			in.Sigma = sigma
			got, err := p.CallPrice(in)
			if err != nil {
				t.Fatalf("CallPrice(sigma=%s) error: %v", sigma, err)
			}
			if got.Cmp(prev) < 0 {
				t.Errorf("CallPrice(spot=%s, sigma=%s) = %s, below %s at lower sigma", in.Spot, sigma, got, prev)
			}
			prev = got
		}
	}
}

func TestPrice_DomainErrors(t *testing.T) {
	p := newTestPricer()
	valid := inputs(t, "100", "100", "0.2", "0.05", fixedpoint.MustParse("0.5"))

	tests := []struct {
		name   string
		mutate func(*model.PricingInputs)
	}{
		{"zero spot", func(in *model.PricingInputs) { in.Spot = fixedpoint.Zero }},
		{"negative strike", func(in *model.PricingInputs) { in.Strike = fixedpoint.New(-1) }},
		{"zero sigma", func(in *model.PricingInputs) { in.Sigma = fixedpoint.Zero }},
		{"negative sigma", func(in *model.PricingInputs) { in.Sigma = fixedpoint.MustParse("-0.2") }},
		{"zero time", func(in *model.PricingInputs) { in.Time = fixedpoint.Zero }},
		{"vanishing sigma*sqrt(time)", func(in *model.PricingInputs) {
			in.Sigma = fixedpoint.FromRawInt64(1)
			in.Time = fixedpoint.FromRawInt64(1)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if _, err := p.CallPrice(in); !errors.Is(err, fixedpoint.ErrDomain) {
				t.Errorf("CallPrice error = %v, want ErrDomain", err)
			}
			if _, err := p.PutPrice(in); !errors.Is(err, fixedpoint.ErrDomain) {
				t.Errorf("PutPrice error = %v, want ErrDomain", err)
			}
		})
	}
}

func TestPrice_NeverNegative(t *testing.T) {
	p := newTestPricer()
	// Deep out of the money on both sides.
	for _, in := range []model.PricingInputs{
		inputs(t, "1", "1000", "0.1", "0", days(t, "1")),
		inputs(t, "1000", "1", "0.1", "0", days(t, "1")),
	} {
		for _, kind := range []model.OptionKind{model.Call, model.Put} {
			got, err := p.Price(kind, in)
			if err != nil {
				t.Fatalf("Price error: %v", err)
			}
			if got.Sign() < 0 {
				t.Errorf("%s price(spot=%s, strike=%s) = %s, want >= 0", kind, in.Spot, in.Strike, got)
			}
		}
	}
}

func TestPrice_UnknownKind(t *testing.T) {
	p := newTestPricer()
	in := inputs(t, "100", "100", "0.2", "0", fixedpoint.New(1))
	if _, err := p.Price(model.OptionKind("straddle"), in); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Price error = %v, want ErrUnknownKind", err)
	}
}

func TestNew_Decimals(t *testing.T) {
	if got := New(normal.Default(), Config{}).Decimals(); got != DefaultDecimals {
		t.Errorf("Decimals() = %d, want %d", got, DefaultDecimals)
	}

	p := New(normal.Default(), Config{Decimals: 3})
	in := inputs(t, "100", "100", "0.2", "0", fixedpoint.New(1))
	if _, err := p.CallPrice(in); !errors.Is(err, normal.ErrInvalidDecimals) {
		t.Errorf("CallPrice error = %v, want ErrInvalidDecimals", err)
	}

	// Lower precision still prices close to the default.
	coarse, err := New(normal.Default(), Config{Decimals: 8}).CallPrice(in)
	if err != nil {
		t.Fatalf("CallPrice error: %v", err)
	}
	fine, err := newTestPricer().CallPrice(in)
	if err != nil {
		t.Fatalf("CallPrice error: %v", err)
	}
	diff, _ := fixedpoint.Sub(fine, coarse)
	diff, _ = fixedpoint.Abs(diff)
	if diff.Cmp(fixedpoint.MustParse("0.00001")) > 0 {
		t.Errorf("8-decimal price %s differs from 24-decimal price %s by %s", coarse, fine, diff)
	}
}
