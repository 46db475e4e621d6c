package fixedpoint

import "math/big"

// Input bounds for Exp. e^136 exceeds the signed 256-bit range at 18
// decimals; e^-60 is far below one raw unit.
var (
	MaxExpInput = New(136)
	MinExpInput = New(-60)
)

// Exp returns e^x.
func Exp(x Value) (Value, error) {
	if x.Cmp(MaxExpInput) > 0 {
		return Zero, ErrOverflow
	}
	if x.Cmp(MinExpInput) < 0 {
		return Zero, nil
	}
	res := expWork(new(big.Int).Mul(x.bigInt(), workShift))
	return checked(quoRound(res, workShift))
}

// expWork returns e^x with x and the result at workDecimals.
//
// x = k*ln2 + r with |r| <= ln2/2, e^r is summed as a Taylor series and
// the result is shifted by 2^k.
func expWork(x *big.Int) *big.Int {
	k := quoRound(x, ln2Work)
	r := new(big.Int).Mul(k, ln2Work)
	r.Sub(x, r)

	sum := new(big.Int).Set(workScale)
	term := new(big.Int).Set(workScale)
	den := new(big.Int)
	for n := int64(1); ; n++ {
		term.Mul(term, r)
		term.Quo(term, den.Mul(workScale, big.NewInt(n)))
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, term)
	}

	return shift(sum, -int(k.Int64()))
}
