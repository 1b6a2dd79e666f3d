// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Decimal text is parsed and rendered
// through shopspring/decimal so JSON clients see plain numbers (12.5) while
// sums never touch floating point.
package core

import (
	"bytes"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// maxCents bounds accepted amounts well inside int64 so sums cannot overflow.
const maxCents = 1_000_000_000_000_000

// Input bounds, checked before rescaling. Rescaling materialises
// 10^exponent, so exponents must stay small.
const (
	maxAmountLen = 64
	minAmountExp = -64
	maxAmountExp = 18
)

var ErrInvalidAmount = errors.New("invalid amount")

// Money is an amount in cents.
type Money struct {
	Cents int64
}

// ParseAmount converts a decimal string to Money with half-up rounding on
// the third decimal place. Both dot (12.34) and comma (12,34) separators are
// accepted. Negative values are rejected; zero is allowed.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,345") -> 1235 cents
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountLen {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return fromDecimal(d)
}

func fromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	if d.IsZero() {
		return Money{}, nil
	}
	if exp := d.Exponent(); exp < minAmountExp || exp > maxAmountExp {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(decimal.NewFromInt(maxCents)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the amount as a decimal in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float returns the amount in currency units for spreadsheet cells.
// Use Cents for arithmetic.
func (m Money) Float() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// String renders the amount with exactly two decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		data = bytes.Trim(data, `"`)
	}
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
