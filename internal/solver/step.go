package solver

import (
	"fmt"
	"math/big"

	"github.com/rickgao/ivengine/internal/fixedpoint"
	"github.com/rickgao/ivengine/internal/model"
)

// CloserIV interpolates the guess at which the bracket's price line
// crosses target:
//
//	lower.guess + (higher.guess - lower.guess) * (target - lower.price) / (higher.price - lower.price)
//
// The result may fall outside the bracket (extrapolation) and may be
// non-positive; callers decide how to handle that.
func CloserIV(b model.Bracket, target fixedpoint.Value) (fixedpoint.Value, error) {
	if b.Lower.Price.Equal(b.Higher.Price) {
		return fixedpoint.Zero, fmt.Errorf("%w: bracket prices are equal (%s)", ErrNonConvergence, b.Lower.Price)
	}

	dGuess, err := fixedpoint.Sub(b.Higher.Guess, b.Lower.Guess)
	if err != nil {
		return fixedpoint.Zero, err
	}
	dTarget, err := fixedpoint.Sub(target, b.Lower.Price)
	if err != nil {
		return fixedpoint.Zero, err
	}
	dPrice, err := fixedpoint.Sub(b.Higher.Price, b.Lower.Price)
	if err != nil {
		return fixedpoint.Zero, err
	}

	offset, err := fixedpoint.MulDiv(dGuess, dTarget, dPrice)
	if err != nil {
		return fixedpoint.Zero, err
	}
	return fixedpoint.Add(b.Lower.Guess, offset)
}

// Advance replaces one bracket endpoint with s.
//
// The replaced endpoint is the one whose price lies on the same side of
// target as s.Price; if both do, the one farther from target goes. If
// neither does, the farther of the two goes. The result is ordered by guess.
func Advance(b model.Bracket, s model.Sample, target fixedpoint.Value) model.Bracket {
	side := s.Price.Cmp(target)
	lowerSame := b.Lower.Price.Cmp(target) == side
	higherSame := b.Higher.Price.Cmp(target) == side

	replaceLower := lowerSame
	if lowerSame == higherSame {
		replaceLower = distance(b.Lower.Price, target).Cmp(distance(b.Higher.Price, target)) >= 0
	}

	if replaceLower {
		return model.NewBracket(b.Higher, s)
	}
	return model.NewBracket(b.Lower, s)
}

// WithinRange reports whether price is within bps basis points of target.
// target must be positive.
func WithinRange(price, target fixedpoint.Value, bps uint32) bool {
	diff := distance(price, target)
	diff.Mul(diff, big.NewInt(bpsDenominator))
	limit := new(big.Int).Mul(big.NewInt(int64(bps)), target.Raw())
	return diff.Cmp(limit) <= 0
}

// distance returns |a - b| as a raw integer.
func distance(a, b fixedpoint.Value) *big.Int {
	d := new(big.Int).Sub(a.Raw(), b.Raw())
	return d.Abs(d)
}
