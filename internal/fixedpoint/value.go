package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits carried by a Value.
const Decimals = 18

var (
	// ErrOverflow is returned when a result leaves the signed 256-bit range.
	ErrOverflow = errors.New("fixedpoint: arithmetic overflow")

	// ErrDivisionByZero is returned by Div and negative integral powers of zero.
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")

	// ErrDomain is returned when an input is outside a function's domain.
	ErrDomain = errors.New("fixedpoint: domain error")
)

var (
	bigOne   = big.NewInt(1)
	bigTen   = big.NewInt(10)
	scaleInt = pow10(Decimals)

	maxRaw = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)
	minRaw = new(big.Int).Neg(new(big.Int).Lsh(bigOne, 255))
)

// Common values.
var (
	Zero = Value{}
	One  = New(1)
	Two  = New(2)
)

// Value is an immutable 18-decimal fixed-point number.
// The zero value is 0.
type Value struct {
	raw *big.Int
}

// New returns the whole number n.
func New(n int64) Value {
	return Value{raw: new(big.Int).Mul(big.NewInt(n), scaleInt)}
}

// FromRaw returns the Value whose scaled representation is raw.
// raw is copied.
func FromRaw(raw *big.Int) (Value, error) {
	if raw == nil {
		return Zero, nil
	}
	return checked(new(big.Int).Set(raw))
}

// FromRawInt64 returns the Value whose scaled representation is raw.
func FromRawInt64(raw int64) Value {
	return Value{raw: big.NewInt(raw)}
}

// FromDecimal converts d, truncating digits beyond 18 decimals.
func FromDecimal(d decimal.Decimal) (Value, error) {
	return checked(d.Shift(Decimals).BigInt())
}

// Parse reads a decimal string such as "1.18" or "-0.5".
func Parse(s string) (Value, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("parse fixed-point %q: %w", s, err)
	}
	return FromDecimal(d)
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Value {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Raw returns a copy of the scaled integer.
func (v Value) Raw() *big.Int {
	if v.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v.raw)
}

// bigInt returns the scaled integer without copying. Callers must not mutate it.
func (v Value) bigInt() *big.Int {
	if v.raw == nil {
		return new(big.Int)
	}
	return v.raw
}

// Decimal returns v as an exact decimal.
func (v Value) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(v.bigInt(), -Decimals)
}

// String formats v as a plain decimal string without trailing zeros.
func (v Value) String() string {
	return v.Decimal().String()
}

// Float64 approximates v for logging and reporting.
func (v Value) Float64() float64 {
	return v.Decimal().InexactFloat64()
}

// Sign returns -1, 0 or +1.
func (v Value) Sign() int {
	return v.bigInt().Sign()
}

// IsZero reports whether v == 0.
func (v Value) IsZero() bool {
	return v.Sign() == 0
}

// IsInteger reports whether v has no fractional part.
func (v Value) IsInteger() bool {
	return new(big.Int).Rem(v.bigInt(), scaleInt).Sign() == 0
}

// Cmp compares v and w and returns -1, 0 or +1.
func (v Value) Cmp(w Value) int {
	return v.bigInt().Cmp(w.bigInt())
}

// Equal reports whether v == w.
func (v Value) Equal(w Value) bool {
	return v.Cmp(w) == 0
}

// MarshalText implements encoding.TextMarshaler.
func (v Value) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Value) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// checked wraps raw after verifying it fits the signed 256-bit range.
// raw must not be shared with any other Value.
func checked(raw *big.Int) (Value, error) {
	if raw.Cmp(maxRaw) > 0 || raw.Cmp(minRaw) < 0 {
		return Zero, ErrOverflow
	}
	return Value{raw: raw}, nil
}

// InRange reports whether raw fits the signed 256-bit range.
func InRange(raw *big.Int) bool {
	return raw.Cmp(maxRaw) <= 0 && raw.Cmp(minRaw) >= 0
}

// Pow10 returns 10^n as a new big.Int.
func Pow10(n int) *big.Int {
	return pow10(n)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(bigTen, big.NewInt(int64(n)), nil)
}
