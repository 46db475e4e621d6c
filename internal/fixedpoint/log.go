package fixedpoint

import "math/big"

// workDecimals is the internal precision used by Ln and Exp.
const workDecimals = 36

var (
	workScale = pow10(workDecimals)
	// ln(2) at 36 decimals.
	ln2Work, _ = new(big.Int).SetString("693147180559945309417232121458176568", 10)
	// 10^18, the factor between the working and the public scale.
	workShift = pow10(workDecimals - Decimals)
)

// Ln returns the natural logarithm of x. x must be positive.
func Ln(x Value) (Value, error) {
	if x.Sign() <= 0 {
		return Zero, ErrDomain
	}
	res := lnWork(new(big.Int).Mul(x.bigInt(), workShift))
	return checked(quoRound(res, workShift))
}

// lnWork returns ln(x) for x > 0, both at workDecimals.
//
// x is reduced to m * 2^k with m in [1, 2), and ln(m) is summed as
// 2*(t + t^3/3 + t^5/5 + ...) with t = (m-1)/(m+1) <= 1/3.
func lnWork(x *big.Int) *big.Int {
	k := x.BitLen() - workScale.BitLen()
	m := shift(x, k)
	two := new(big.Int).Lsh(workScale, 1)
	for m.Cmp(two) >= 0 {
		k++
		m = shift(x, k)
	}
	for m.Cmp(workScale) < 0 {
		k--
		m = shift(x, k)
	}

	num := new(big.Int).Sub(m, workScale)
	num.Mul(num, workScale)
	t := num.Quo(num, new(big.Int).Add(m, workScale))
	t2 := new(big.Int).Mul(t, t)
	t2.Quo(t2, workScale)

	sum := new(big.Int).Set(t)
	term := new(big.Int).Set(t)
	part := new(big.Int)
	for n := int64(3); ; n += 2 {
		term.Mul(term, t2)
		term.Quo(term, workScale)
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, part.Quo(term, big.NewInt(n)))
	}
	sum.Lsh(sum, 1)

	return sum.Add(sum, new(big.Int).Mul(big.NewInt(int64(k)), ln2Work))
}

// shift returns x / 2^k for k >= 0 and x * 2^-k otherwise.
func shift(x *big.Int, k int) *big.Int {
	if k >= 0 {
		return new(big.Int).Rsh(x, uint(k))
	}
	return new(big.Int).Lsh(x, uint(-k))
}
