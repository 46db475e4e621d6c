package normal

import (
	"math/big"
	"sort"

	"github.com/rickgao/ivengine/internal/fixedpoint"
)

// Probability returns P(Z <= z) for a standard normal Z, scaled to
// 10^decimals. z carries ZDecimals fractional digits.
func (t *Table) Probability(z *big.Int, decimals uint8) (*big.Int, error) {
	if decimals < MinDecimals || decimals > MaxDecimals {
		return nil, ErrInvalidDecimals
	}
	s := t.snap.Load()
	if len(s.buckets) == 0 {
		return nil, ErrEmptyTable
	}

	if z.Sign() < 0 {
		p := s.probability(new(big.Int).Neg(z), int(decimals))
		return p.Sub(fixedpoint.Pow10(int(decimals)), p), nil
	}
	return s.probability(z, int(decimals)), nil
}

// probability evaluates the table at absZ >= 0.
//
// Interpolation runs at max(decimals, TableDecimals) so that results with
// fewer decimals than the table are truncated only once.
func (s *snapshot) probability(absZ *big.Int, decimals int) *big.Int {
	work := decimals
	if work < TableDecimals {
		work = TableDecimals
	}
	up := fixedpoint.Pow10(work - TableDecimals)
	down := fixedpoint.Pow10(work - decimals)

	last := len(s.buckets) - 1
	q, _ := bucketOf(absZ)

	// Saturation above the last bucket; clamp below the first.
	if q.Cmp(big.NewInt(s.buckets[last])) >= 0 {
		return scale(s.probs[last], up, down)
	}
	bucket := q.Int64()
	if bucket < s.buckets[0] {
		return scale(s.probs[0], up, down)
	}

	i := sort.Search(len(s.buckets), func(i int) bool { return s.buckets[i] > bucket }) - 1

	lowPos := new(big.Int).Mul(big.NewInt(s.buckets[i]), bucketWidth)
	highPos := new(big.Int).Mul(big.NewInt(s.buckets[i+1]), bucketWidth)
	offset := new(big.Int).Sub(absZ, lowPos)
	span := highPos.Sub(highPos, lowPos)

	// p = p[i] + (p[i+1] - p[i]) * offset / span, at 10^work
	p := new(big.Int).Mul(big.NewInt(s.probs[i]), up)
	delta := new(big.Int).Mul(big.NewInt(s.probs[i+1]-s.probs[i]), up)
	delta.Mul(delta, offset)
	delta.Quo(delta, span)
	p.Add(p, delta)

	return p.Quo(p, down)
}

func scale(prob int64, up, down *big.Int) *big.Int {
	p := new(big.Int).Mul(big.NewInt(prob), up)
	return p.Quo(p, down)
}
