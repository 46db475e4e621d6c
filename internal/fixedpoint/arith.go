package fixedpoint

import "math/big"

// Add returns a + b.
func Add(a, b Value) (Value, error) {
	return checked(new(big.Int).Add(a.bigInt(), b.bigInt()))
}

// Sub returns a - b.
func Sub(a, b Value) (Value, error) {
	return checked(new(big.Int).Sub(a.bigInt(), b.bigInt()))
}

// Neg returns -v.
func Neg(v Value) (Value, error) {
	return checked(new(big.Int).Neg(v.bigInt()))
}

// Abs returns |v|.
func Abs(v Value) (Value, error) {
	return checked(new(big.Int).Abs(v.bigInt()))
}

// Mul returns a*b/10^18, truncated toward zero.
func Mul(a, b Value) (Value, error) {
	p := new(big.Int).Mul(a.bigInt(), b.bigInt())
	return checked(p.Quo(p, scaleInt))
}

// Div returns a*10^18/b, truncated toward zero.
func Div(a, b Value) (Value, error) {
	if b.IsZero() {
		return Zero, ErrDivisionByZero
	}
	n := new(big.Int).Mul(a.bigInt(), scaleInt)
	return checked(n.Quo(n, b.bigInt()))
}

// MulScaled returns a*b/10^decimals, truncated toward zero. It applies a
// factor carried at a different precision, such as a probability with 24
// decimals, without first rescaling the factor.
func MulScaled(a Value, b *big.Int, decimals uint8) (Value, error) {
	p := new(big.Int).Mul(a.bigInt(), b)
	return checked(p.Quo(p, pow10(int(decimals))))
}

// MulDiv returns a*b/c with a single truncation toward zero.
func MulDiv(a, b, c Value) (Value, error) {
	if c.IsZero() {
		return Zero, ErrDivisionByZero
	}
	p := new(big.Int).Mul(a.bigInt(), b.bigInt())
	return checked(p.Quo(p, c.bigInt()))
}

// Rescale converts a Value to an integer with the given number of
// fractional digits, truncating toward zero when digits are dropped.
func Rescale(v Value, decimals uint8) *big.Int {
	d := int(decimals)
	switch {
	case d == Decimals:
		return v.Raw()
	case d > Decimals:
		return new(big.Int).Mul(v.bigInt(), pow10(d-Decimals))
	default:
		return new(big.Int).Quo(v.bigInt(), pow10(Decimals-d))
	}
}

// Min returns the smaller of a and b.
func Min(a, b Value) Value {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// quoRound divides a by b rounding half away from zero.
func quoRound(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	r.Abs(r).Lsh(r, 1)
	if r.Cmp(new(big.Int).Abs(b)) >= 0 {
		if (a.Sign() < 0) != (b.Sign() < 0) {
			q.Sub(q, bigOne)
		} else {
			q.Add(q, bigOne)
		}
	}
	return q
}
