// Command ivcheck reports the accuracy of the fixed-point engine against a
// float64 reference and exits non-zero when a bound is exceeded.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/big"
	"os"
	"text/tabwriter"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rickgao/ivengine/internal/fixedpoint"
	"github.com/rickgao/ivengine/internal/model"
	"github.com/rickgao/ivengine/internal/normal"
	"github.com/rickgao/ivengine/internal/pricing"
	"github.com/rickgao/ivengine/internal/solver"
)

// Check is one line of the report.
type Check struct {
	Name     string  `csv:"name"`
	Samples  int     `csv:"samples"`
	MaxError float64 `csv:"max_error"`
	Bound    float64 `csv:"bound"`
	Passed   bool    `csv:"passed"`
}

func main() {
	tablePath := flag.String("table", "", "CSV probability table (built-in table when empty)")
	cdfTol := flag.Float64("cdf-tol", 1e-5, "max absolute CDF error")
	priceTol := flag.Float64("price-tol", 1e-4, "max price error relative to spot")
	ivTol := flag.Float64("iv-tol", 0.005, "max implied volatility error")
	format := flag.String("format", "text", "report format: text or csv")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	table := normal.Default()
	if *tablePath != "" {
		var err error
		table, err = normal.LoadFile(*tablePath)
		if err != nil {
			logger.Error("failed to load probability table", "error", err)
			os.Exit(1)
		}
	}
	pricer := pricing.New(table, pricing.DefaultConfig())
	guesser := solver.New(pricer, nil, solver.WithLogger(logger))

	checks := []Check{
		checkCDF(table, *cdfTol),
		checkPrices(pricer, *priceTol),
		checkIV(guesser, *ivTol),
	}

	var err error
	if *format == "csv" {
		err = gocsv.Marshal(&checks, os.Stdout)
	} else {
		err = writeText(os.Stdout, checks)
	}
	if err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(1)
	}

	for _, c := range checks {
		if !c.Passed {
			os.Exit(2)
		}
	}
}

func writeText(w io.Writer, checks []Check) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSAMPLES\tMAX ERROR\tBOUND\tRESULT")
	for _, c := range checks {
		result := "ok"
		if !c.Passed {
			result = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%d\t%.3g\t%.3g\t%s\n", c.Name, c.Samples, c.MaxError, c.Bound, result)
	}
	return tw.Flush()
}

// checkCDF compares table probabilities over [-4, 4] with the exact CDF.
func checkCDF(table *normal.Table, bound float64) Check {
	c := Check{Name: "cdf", Bound: bound, Passed: true}
	step := new(big.Int).Mul(big.NewInt(1373), fixedpoint.Pow10(normal.ZDecimals-5))
	limit := new(big.Int).Mul(big.NewInt(4), fixedpoint.Pow10(normal.ZDecimals))
	scale := math.Pow10(18)

	for z := new(big.Int).Neg(limit); z.Cmp(limit) <= 0; z.Add(z, step) {
		p, err := table.Probability(z, 18)
		if err != nil {
			c.Passed = false
			continue
		}
		got, _ := new(big.Float).SetInt(p).Float64()
		zf, _ := new(big.Float).Quo(new(big.Float).SetInt(z), new(big.Float).SetInt(fixedpoint.Pow10(normal.ZDecimals))).Float64()

		c.MaxError = math.Max(c.MaxError, math.Abs(got/scale-distuv.UnitNormal.CDF(zf)))
		c.Samples++
	}
	c.Passed = c.Passed && c.MaxError <= bound
	return c
}

// checkPrices compares calls and puts with a float64 Black-Scholes.
func checkPrices(pricer *pricing.Pricer, bound float64) Check {
	c := Check{Name: "price", Bound: bound, Passed: true}

	for _, spot := range []string{"50", "100", "368", "10500"} {
		for _, moneyness := range []float64{0.8, 0.95, 1, 1.05, 1.25} {
			for _, sigma := range []string{"0.1", "0.35", "1.18"} {
				for _, t := range []string{"0.0178", "0.25", "1"} {
					s := fixedpoint.MustParse(spot)
					in := model.PricingInputs{
						Spot:     s,
						Strike:   fixedpoint.MustParse(fmt.Sprintf("%.4f", s.Float64()*moneyness)),
						Sigma:    fixedpoint.MustParse(sigma),
						RiskFree: fixedpoint.MustParse("0.03"),
						Time:     fixedpoint.MustParse(t),
					}
					wantCall, wantPut := reference(in)

					for kind, want := range map[model.OptionKind]float64{model.Call: wantCall, model.Put: wantPut} {
						got, err := pricer.Price(kind, in)
						if err != nil {
							c.Passed = false
							continue
						}
						c.MaxError = math.Max(c.MaxError, math.Abs(got.Float64()-want)/in.Spot.Float64())
						c.Samples++
					}
				}
			}
		}
	}
	c.Passed = c.Passed && c.MaxError <= bound
	return c
}

func reference(in model.PricingInputs) (call, put float64) {
	s, k, v, r, t := in.Spot.Float64(), in.Strike.Float64(), in.Sigma.Float64(), in.RiskFree.Float64(), in.Time.Float64()
	d1 := (math.Log(s/k) + (r+v*v/2)*t) / (v * math.Sqrt(t))
	d2 := d1 - v*math.Sqrt(t)
	n := distuv.UnitNormal
	df := math.Exp(-r * t)
	call = s*n.CDF(d1) - k*df*n.CDF(d2)
	put = k*df*n.CDF(-d2) - s*n.CDF(-d1)
	return call, put
}

// checkIV solves the reference put scenario from several starting guesses.
func checkIV(guesser *solver.Guesser, bound float64) Check {
	c := Check{Name: "implied_volatility", Bound: bound, Passed: true}
	want := 1.2

	for _, guess := range []string{"1.8", "1.0", "0.2", "3.8"} {
		res, err := guesser.PutIV(context.Background(),
			fixedpoint.MustParse("1275.126573"),
			fixedpoint.MustParse(guess),
			fixedpoint.New(10500),
			fixedpoint.New(11000),
			fixedpoint.MustParse("0.03836"),
			fixedpoint.Zero,
		)
		if err != nil {
			c.Passed = false
			continue
		}
		c.MaxError = math.Max(c.MaxError, math.Abs(res.Guess.Float64()-want))
		c.Samples++
	}
	c.Passed = c.Passed && c.MaxError <= bound
	return c
}
