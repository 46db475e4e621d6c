package fixedpoint

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		wantRaw string
	}{
		{"0", "0"},
		{"1", "1000000000000000000"},
		{"1.18", "1180000000000000000"},
		{"-0.5", "-500000000000000000"},
		{"0.000000000000000001", "1"},
		{"1275.126573", "1275126573000000000000"},
		// digits beyond 18 decimals are truncated
		{"0.0000000000000000019", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.in, err)
			}
			if got := v.Raw().String(); got != tt.wantRaw {
				t.Errorf("Parse(%q).Raw() = %s, want %s", tt.in, got, tt.wantRaw)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse("abc"); err == nil {
		t.Error("Parse(abc) expected error")
	}
}

func TestParse_Overflow(t *testing.T) {
	huge := "10000000000000000000000000000000000000000000000000000000000000"
	if _, err := Parse(huge); !errors.Is(err, ErrOverflow) {
		t.Errorf("Parse(1e61) error = %v, want ErrOverflow", err)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Zero, "0"},
		{New(368), "368"},
		{MustParse("1.180"), "1.18"},
		{FromRawInt64(-1), "-0.000000000000000001"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestZeroValue(t *testing.T) {
	var v Value
	if !v.IsZero() {
		t.Error("zero Value should be zero")
	}
	if v.Raw().Sign() != 0 {
		t.Errorf("zero Value Raw() = %s, want 0", v.Raw())
	}
	if !v.Equal(Zero) {
		t.Error("zero Value should equal Zero")
	}
}

func TestRawIsCopy(t *testing.T) {
	v := New(5)
	r := v.Raw()
	r.SetInt64(1)
	if !v.Equal(New(5)) {
		t.Errorf("mutating Raw() changed the Value: %s", v)
	}
}

func TestFromRaw(t *testing.T) {
	raw := big.NewInt(42)
	v, err := FromRaw(raw)
	if err != nil {
		t.Fatalf("FromRaw error: %v", err)
	}
	raw.SetInt64(7)
	if v.Raw().Int64() != 42 {
		t.Errorf("FromRaw did not copy input, got %s", v.Raw())
	}

	tooBig := new(big.Int).Lsh(big.NewInt(1), 255)
	if _, err := FromRaw(tooBig); !errors.Is(err, ErrOverflow) {
		t.Errorf("FromRaw(2^255) error = %v, want ErrOverflow", err)
	}
	if _, err := FromRaw(new(big.Int).Neg(tooBig)); err != nil {
		t.Errorf("FromRaw(-2^255) unexpected error: %v", err)
	}
}

func TestFromDecimal(t *testing.T) {
	v, err := FromDecimal(decimal.RequireFromString("6.5"))
	if err != nil {
		t.Fatalf("FromDecimal error: %v", err)
	}
	if !v.Equal(MustParse("6.5")) {
		t.Errorf("FromDecimal(6.5) = %s", v)
	}
	if !v.Decimal().Equal(decimal.RequireFromString("6.5")) {
		t.Errorf("Decimal() = %s, want 6.5", v.Decimal())
	}
}

func TestIsInteger(t *testing.T) {
	if !New(3).IsInteger() {
		t.Error("3 should be integral")
	}
	if MustParse("3.5").IsInteger() {
		t.Error("3.5 should not be integral")
	}
	if !New(-4).IsInteger() {
		t.Error("-4 should be integral")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Sigma Value `json:"sigma"`
	}
	in := payload{Sigma: MustParse("1.18")}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(data) != `{"sigma":"1.18"}` {
		t.Errorf("Marshal = %s, want {\"sigma\":\"1.18\"}", data)
	}

	var out payload
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !out.Sigma.Equal(in.Sigma) {
		t.Errorf("round trip = %s, want %s", out.Sigma, in.Sigma)
	}

	if err := json.Unmarshal([]byte(`{"sigma":"x1"}`), &out); err == nil {
		t.Error("Unmarshal of invalid number expected error")
	}
}
