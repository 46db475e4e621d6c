package solver

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rickgao/ivengine/internal/fixedpoint"
	"github.com/rickgao/ivengine/internal/metrics"
	"github.com/rickgao/ivengine/internal/model"
	"github.com/rickgao/ivengine/internal/normal"
	"github.com/rickgao/ivengine/internal/pricing"
	"github.com/rickgao/ivengine/internal/registry"
)

func newTestGuesser(opts ...Option) *Guesser {
	p := pricing.New(normal.Default(), pricing.DefaultConfig())
	return New(p, registry.NewMemoryStore(), opts...)
}

// linearPricer prices at slope*sigma + intercept regardless of kind.
type linearPricer struct {
	mu        sync.Mutex
	slope     fixedpoint.Value
	intercept fixedpoint.Value
	seen      []fixedpoint.Value
}

func (l *linearPricer) Price(kind model.OptionKind, in model.PricingInputs) (fixedpoint.Value, error) {
	l.mu.Lock()
	l.seen = append(l.seen, in.Sigma)
	l.mu.Unlock()

	p, err := fixedpoint.Mul(l.slope, in.Sigma)
	if err != nil {
		return fixedpoint.Zero, err
	}
	return fixedpoint.Add(p, l.intercept)
}

func scenarioQuery(guess string) Query {
	return Query{
		TargetPrice:  fixedpoint.MustParse("1275.126573"),
		InitialGuess: fixedpoint.MustParse(guess),
		Spot:         fixedpoint.New(10500),
		Strike:       fixedpoint.New(11000),
		Time:         fixedpoint.MustParse("0.03836"),
		RiskFree:     fixedpoint.Zero,
	}
}

func TestPutIV_ConvergesFromAnyGuess(t *testing.T) {
	g := newTestGuesser()

	tests := []struct {
		guess          string
		wantIterations uint32
	}{
		{"1.8", 2},
		{"1.0", 2},
		{"0.2", 4},
		{"3.8", 3},
	}

	for _, tt := range tests {
		t.Run(tt.guess, func(t *testing.T) {
			q := scenarioQuery(tt.guess)
			res, err := g.PutIV(context.Background(), q.TargetPrice, q.InitialGuess, q.Spot, q.Strike, q.Time, q.RiskFree)
			if err != nil {
				t.Fatalf("PutIV error: %v", err)
			}

			if res.Guess.Cmp(fixedpoint.MustParse("1.195")) < 0 || res.Guess.Cmp(fixedpoint.MustParse("1.205")) > 0 {
				t.Errorf("Guess = %s, want about 1.2", res.Guess)
			}
			if !WithinRange(res.Price, q.TargetPrice, DefaultAcceptableRangeBps) {
				t.Errorf("Price = %s, not within %d bps of %s", res.Price, DefaultAcceptableRangeBps, q.TargetPrice)
			}
			if res.Iterations != tt.wantIterations {
				t.Errorf("Iterations = %d, want %d", res.Iterations, tt.wantIterations)
			}
		})
	}
}

func TestPutIV_RoundTrip(t *testing.T) {
	g := newTestGuesser()
	p := pricing.New(normal.Default(), pricing.DefaultConfig())
	ctx := context.Background()

	timeToExpiry, _ := fixedpoint.Div(fixedpoint.MustParse("6.5"), fixedpoint.New(365))
	in := model.PricingInputs{
		Spot:     fixedpoint.New(368),
		Strike:   fixedpoint.New(320),
		RiskFree: fixedpoint.Zero,
		Time:     timeToExpiry,
	}

	for _, sigma := range []string{"0.5", "1.18", "2"} {
		t.Run(sigma, func(t *testing.T) {
			in.Sigma = fixedpoint.MustParse(sigma)
			target, err := p.PutPrice(in)
			if err != nil {
				t.Fatalf("PutPrice error: %v", err)
			}

			// Starting at the answer needs no further evaluations.
			res, err := g.PutIV(ctx, target, in.Sigma, in.Spot, in.Strike, in.Time, in.RiskFree)
			if err != nil {
				t.Fatalf("PutIV error: %v", err)
			}
			if res.Iterations != 0 || !res.Guess.Equal(in.Sigma) {
				t.Errorf("PutIV from sigma = %+v, want 0 iterations at %s", res, sigma)
			}

			// Starting elsewhere converges to a price within tolerance.
			res, err = g.PutIV(ctx, target, fixedpoint.One, in.Spot, in.Strike, in.Time, in.RiskFree)
			if err != nil {
				t.Fatalf("PutIV error: %v", err)
			}
			if !WithinRange(res.Price, target, DefaultAcceptableRangeBps) {
				t.Errorf("PutIV price = %s, not within tolerance of %s", res.Price, target)
			}
		})
	}
}

func TestCallIV_RoundTrip(t *testing.T) {
	g := newTestGuesser()
	p := pricing.New(normal.Default(), pricing.DefaultConfig())

	in := model.PricingInputs{
		Spot:     fixedpoint.New(100),
		Strike:   fixedpoint.New(105),
		Sigma:    fixedpoint.MustParse("0.35"),
		RiskFree: fixedpoint.MustParse("0.03"),
		Time:     fixedpoint.MustParse("0.75"),
	}
	target, err := p.CallPrice(in)
	if err != nil {
		t.Fatalf("CallPrice error: %v", err)
	}

	res, err := g.CallIV(context.Background(), target, fixedpoint.MustParse("0.8"), in.Spot, in.Strike, in.Time, in.RiskFree)
	if err != nil {
		t.Fatalf("CallIV error: %v", err)
	}
	if !WithinRange(res.Price, target, DefaultAcceptableRangeBps) {
		t.Errorf("CallIV price = %s, not within tolerance of %s", res.Price, target)
	}
	diff, _ := fixedpoint.Sub(res.Guess, in.Sigma)
	diff, _ = fixedpoint.Abs(diff)
	if diff.Cmp(fixedpoint.MustParse("0.01")) > 0 {
		t.Errorf("CallIV = %s, want about %s", res.Guess, in.Sigma)
	}
}

func TestSolve_InvalidInputs(t *testing.T) {
	g := newTestGuesser()
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*Query)
		wantErr error
	}{
		{"zero guess", func(q *Query) { q.InitialGuess = fixedpoint.Zero }, ErrInvalidGuess},
		{"negative guess", func(q *Query) { q.InitialGuess = fixedpoint.MustParse("-0.5") }, ErrInvalidGuess},
		{"zero target", func(q *Query) { q.TargetPrice = fixedpoint.Zero }, ErrInvalidParameter},
		{"negative target", func(q *Query) { q.TargetPrice = fixedpoint.New(-1) }, ErrInvalidParameter},
		{"zero spot", func(q *Query) { q.Spot = fixedpoint.Zero }, fixedpoint.ErrDomain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := scenarioQuery("1.0")
			tt.mutate(&q)
			if _, err := g.Solve(ctx, model.Put, q); !errors.Is(err, tt.wantErr) {
				t.Errorf("Solve error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSolve_LinearPricer(t *testing.T) {
	lp := &linearPricer{slope: fixedpoint.New(10), intercept: fixedpoint.Zero}
	g := New(lp, nil)

	q := Query{TargetPrice: fixedpoint.New(5), InitialGuess: fixedpoint.One}
	res, err := g.Solve(context.Background(), model.Call, q)
	if err != nil {
		t.Fatalf("Solve error: %v", err)
	}

	// 1.0 -> 0.9 (step down, price above target) -> 0.5 (exact).
	if res.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", res.Iterations)
	}
	if !res.Guess.Equal(fixedpoint.MustParse("0.5")) {
		t.Errorf("Guess = %s, want 0.5", res.Guess)
	}
	if len(lp.seen) != 3 {
		t.Errorf("pricer called %d times, want 3", len(lp.seen))
	}
}

func TestSolve_FlatPriceDoesNotConverge(t *testing.T) {
	lp := &linearPricer{slope: fixedpoint.Zero, intercept: fixedpoint.New(7)}
	g := New(lp, nil)

	q := Query{TargetPrice: fixedpoint.New(5), InitialGuess: fixedpoint.One}
	if _, err := g.Solve(context.Background(), model.Put, q); !errors.Is(err, ErrNonConvergence) {
		t.Errorf("Solve error = %v, want ErrNonConvergence", err)
	}
}

func TestSolve_NeverPricesNonPositiveGuess(t *testing.T) {
	// Price never reaches the target, so extrapolations head below zero.
	lp := &linearPricer{slope: fixedpoint.New(10), intercept: fixedpoint.New(100)}
	g := New(lp, nil)

	q := Query{TargetPrice: fixedpoint.New(50), InitialGuess: fixedpoint.One}
	if _, err := g.Solve(context.Background(), model.Put, q); !errors.Is(err, ErrNonConvergence) {
		t.Errorf("Solve error = %v, want ErrNonConvergence", err)
	}

	for i, sigma := range lp.seen {
		if sigma.Sign() <= 0 {
			t.Errorf("guess %d = %s, want positive", i, sigma)
		}
	}
	if len(lp.seen) > DefaultMaxIterations+1 {
		t.Errorf("pricer called %d times, want at most %d", len(lp.seen), DefaultMaxIterations+1)
	}
}

func TestSolve_MaxIterations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 1
	g := newTestGuesser(WithConfig(cfg))

	// Guess 0.2 needs four evaluations.
	_, err := g.Solve(context.Background(), model.Put, scenarioQuery("0.2"))
	if !errors.Is(err, ErrNonConvergence) {
		t.Errorf("Solve error = %v, want ErrNonConvergence", err)
	}
}

func TestSolve_ContextCanceled(t *testing.T) {
	g := newTestGuesser()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Solve(ctx, model.Put, scenarioQuery("0.2"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Solve error = %v, want context.Canceled", err)
	}
}

func TestSolve_RecordsMetrics(t *testing.T) {
	m := metrics.New(nil)
	g := newTestGuesser(WithMetrics(m))
	ctx := context.Background()

	if _, err := g.Solve(ctx, model.Put, scenarioQuery("1.8")); err != nil {
		t.Fatalf("Solve error: %v", err)
	}
	q := scenarioQuery("1.8")
	q.InitialGuess = fixedpoint.Zero
	if _, err := g.Solve(ctx, model.Put, q); err == nil {
		t.Fatal("Solve with zero guess expected error")
	}

	if got := testutil.ToFloat64(m.SolvesTotal.WithLabelValues("put", metrics.OutcomeConverged)); got != 1 {
		t.Errorf("converged solves = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SolvesTotal.WithLabelValues("put", metrics.OutcomeInvalid)); got != 1 {
		t.Errorf("invalid solves = %v, want 1", got)
	}
}

func TestUpdateAcceptableRange(t *testing.T) {
	ctx := context.Background()
	store := registry.NewMemoryStore()
	g := New(pricing.New(normal.Default(), pricing.DefaultConfig()), store)

	if _, err := g.UpdateAcceptableRange(ctx); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("UpdateAcceptableRange on empty registry error = %v, want ErrNotFound", err)
	}

	tests := []struct {
		bps     uint64
		wantErr bool
	}{
		{5, true},
		{9, true},
		{10, false},
		{250, false},
		{10000, false},
		{10001, true},
	}

	for _, tt := range tests {
		before := g.Config().AcceptableRangeBps
		if err := store.SetUint(ctx, registry.KeyAcceptableRangeBps, tt.bps); err != nil {
			t.Fatalf("SetUint error: %v", err)
		}

		got, err := g.UpdateAcceptableRange(ctx)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("UpdateAcceptableRange(%d) error = %v, want ErrInvalidParameter", tt.bps, err)
			}
			if g.Config().AcceptableRangeBps != before {
				t.Errorf("rejected update changed tolerance to %d", g.Config().AcceptableRangeBps)
			}
			continue
		}
		if err != nil {
			t.Errorf("UpdateAcceptableRange(%d) error: %v", tt.bps, err)
			continue
		}
		if got != uint32(tt.bps) || g.Config().AcceptableRangeBps != uint32(tt.bps) {
			t.Errorf("tolerance = %d (returned %d), want %d", g.Config().AcceptableRangeBps, got, tt.bps)
		}
	}
}

func TestUpdateAcceptableRange_NoRegistry(t *testing.T) {
	g := New(&linearPricer{slope: fixedpoint.One}, nil)
	if _, err := g.UpdateAcceptableRange(context.Background()); err == nil {
		t.Error("UpdateAcceptableRange without registry expected error")
	}
}

func TestUpdateConvergence(t *testing.T) {
	ctx := context.Background()
	store := registry.NewMemoryStore()
	g := New(pricing.New(normal.Default(), pricing.DefaultConfig()), store)

	if err := store.SetUint(ctx, registry.KeyMaxIterations, 0); err != nil {
		t.Fatalf("SetUint error: %v", err)
	}
	if _, err := g.UpdateConvergence(ctx); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("UpdateConvergence(0) error = %v, want ErrInvalidParameter", err)
	}

	if err := store.SetUint(ctx, registry.KeyMaxIterations, 16); err != nil {
		t.Fatalf("SetUint error: %v", err)
	}
	got, err := g.UpdateConvergence(ctx)
	if err != nil {
		t.Fatalf("UpdateConvergence error: %v", err)
	}
	if got != 16 || g.Config().MaxIterations != 16 {
		t.Errorf("MaxIterations = %d, want 16", g.Config().MaxIterations)
	}
	if g.Config().AcceptableRangeBps != DefaultAcceptableRangeBps {
		t.Errorf("AcceptableRangeBps changed to %d", g.Config().AcceptableRangeBps)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     model.ConvergenceConfig
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"tolerance too tight", model.ConvergenceConfig{AcceptableRangeBps: 5, MaxIterations: 64, StepBps: 1000}, true},
		{"no iterations", model.ConvergenceConfig{AcceptableRangeBps: 10, MaxIterations: 0, StepBps: 1000}, true},
		{"zero step", model.ConvergenceConfig{AcceptableRangeBps: 10, MaxIterations: 64, StepBps: 0}, true},
		{"full step", model.ConvergenceConfig{AcceptableRangeBps: 10, MaxIterations: 64, StepBps: 10000}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.wantErr && !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("ValidateConfig error = %v, want ErrInvalidParameter", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateConfig unexpected error: %v", err)
			}
		})
	}
}

func TestGuesser_ConcurrentSolveAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := registry.NewMemoryStore()
	g := New(pricing.New(normal.Default(), pricing.DefaultConfig()), store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if _, err := g.Solve(ctx, model.Put, scenarioQuery("1.8")); err != nil {
					t.Errorf("Solve error: %v", err)
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, bps := range []uint64{10, 20, 50, 100, 10} {
			_ = store.SetUint(ctx, registry.KeyAcceptableRangeBps, bps)
			if _, err := g.UpdateAcceptableRange(ctx); err != nil {
				t.Errorf("UpdateAcceptableRange error: %v", err)
				return
			}
		}
	}()

	wg.Wait()
}
