package fixedpoint

import "math/big"

// Pow returns base^exponent.
//
// Integral exponents use repeated squaring through Mul, so a negative
// base is allowed. Fractional exponents are evaluated as
// exp(exponent * ln(base)) and require base > 0.
func Pow(base, exponent Value) (Value, error) {
	if exponent.IsZero() {
		return One, nil
	}

	if exponent.IsInteger() {
		n := new(big.Int).Quo(exponent.bigInt(), scaleInt)
		if n.Sign() > 0 {
			return powInt(base, n)
		}
		if base.IsZero() {
			return Zero, ErrDivisionByZero
		}
		p, err := powInt(base, n.Neg(n))
		if err != nil {
			return Zero, err
		}
		return Div(One, p)
	}

	if base.Sign() <= 0 {
		return Zero, ErrDomain
	}
	l, err := Ln(base)
	if err != nil {
		return Zero, err
	}
	e, err := Mul(exponent, l)
	if err != nil {
		return Zero, err
	}
	return Exp(e)
}

// powInt computes base^n for n > 0 by square-and-multiply.
func powInt(base Value, n *big.Int) (Value, error) {
	result := One
	b := base
	var err error
	for i := 0; i < n.BitLen(); i++ {
		if n.Bit(i) == 1 {
			if result, err = Mul(result, b); err != nil {
				return Zero, err
			}
		}
		if i+1 < n.BitLen() {
			if b, err = Mul(b, b); err != nil {
				return Zero, err
			}
		}
	}
	return result, nil
}

// Sqrt returns the square root of x, truncated. x must be non-negative.
func Sqrt(x Value) (Value, error) {
	if x.Sign() < 0 {
		return Zero, ErrDomain
	}
	n := new(big.Int).Mul(x.bigInt(), scaleInt)
	return checked(n.Sqrt(n))
}
