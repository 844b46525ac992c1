// Package types provides common types used across bits.
package types

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places every amount is rounded to.
const Places = 1

// Bits is a fixed-point amount of the virtual currency.
// Every constructor and arithmetic result is rounded to one decimal place,
// so stored values compare exactly.
//
// Examples:
//   - New(100) = 100.0
//   - MustParse("2.25") = 2.3
type Bits struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Bits{}

// New creates an amount from a float, rounded to one decimal.
func New(v float64) Bits { return Bits{d: decimal.NewFromFloat(v).Round(Places)} }

// FromDecimal wraps a decimal, rounded to one decimal.
func FromDecimal(d decimal.Decimal) Bits { return Bits{d: d.Round(Places)} }

// MaxDigits bounds the significant digits Parse accepts.
const MaxDigits = 24

// Parse parses a textual amount such as "12", "12.5" or "-3.25".
// Exponent notation and more than MaxDigits digits are rejected.
func Parse(s string) (Bits, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("bits: parse amount: empty string")
	}
	if strings.ContainsAny(s, "eE") {
		return Zero, fmt.Errorf("bits: parse amount %q: exponent notation not allowed", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("bits: parse amount %q: %w", s, err)
	}
	if d.NumDigits() > MaxDigits {
		return Zero, fmt.Errorf("bits: parse amount %q: more than %d digits", s, MaxDigits)
	}
	return FromDecimal(d), nil
}

// MustParse is like Parse but panics on error. Use for constants in tests and defaults.
func MustParse(s string) Bits {
	b, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Sum adds amounts together.
func Sum(amounts ...Bits) Bits {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.d)
	}
	return FromDecimal(total)
}

// Arithmetic operations

// Add returns b + other.
func (b Bits) Add(other Bits) Bits { return FromDecimal(b.d.Add(other.d)) }

// Sub returns b - other.
func (b Bits) Sub(other Bits) Bits { return FromDecimal(b.d.Sub(other.d)) }

// Neg returns -b.
func (b Bits) Neg() Bits { return Bits{d: b.d.Neg()} }

// Comparison methods

// IsZero returns true if the amount is zero.
func (b Bits) IsZero() bool { return b.d.IsZero() }

// IsPositive returns true if the amount is greater than zero.
func (b Bits) IsPositive() bool { return b.d.IsPositive() }

// IsNegative returns true if the amount is less than zero.
func (b Bits) IsNegative() bool { return b.d.IsNegative() }

// Equal reports whether both amounts are equal.
func (b Bits) Equal(other Bits) bool { return b.d.Equal(other.d) }

// LessThan reports whether b < other.
func (b Bits) LessThan(other Bits) bool { return b.d.LessThan(other.d) }

// GreaterThan reports whether b > other.
func (b Bits) GreaterThan(other Bits) bool { return b.d.GreaterThan(other.d) }

// Cmp compares b and other and returns -1, 0 or +1.
func (b Bits) Cmp(other Bits) int { return b.d.Cmp(other.d) }

// Decimal returns the underlying decimal value.
func (b Bits) Decimal() decimal.Decimal { return b.d }

// Float64 returns the nearest float for metrics and display-only math.
func (b Bits) Float64() float64 {
	f, _ := b.d.Float64()
	return f
}

// String returns the amount with exactly one decimal, e.g. "100.0".
func (b Bits) String() string { return b.d.StringFixed(Places) }

// MarshalJSON encodes the amount as a bare JSON number.
func (b Bits) MarshalJSON() ([]byte, error) {
	return []byte(b.d.StringFixed(Places)), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (b *Bits) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*b = Zero
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
