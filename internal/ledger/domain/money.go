package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnits converts a decimal amount string (e.g. "100.00") into signed
// 64-bit minor units (e.g. cents), rounding half-to-even. Money is never
// parsed through binary float: decimal.Decimal keeps the conversion exact
// before it collapses down to an integer storage form, since every
// downstream column is int64.
func MinorUnits(amount string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	scaled := d.Mul(decimal.NewFromInt(100)).RoundBank(0)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %q does not scale to an integer minor-unit value", amount)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %q overflows signed 64-bit minor units", amount)
	}
	return scaled.IntPart(), nil
}

// FormatMinorUnits renders minor units back to a two-decimal string, the
// inverse of MinorUnits, for logs and snapshot reports.
func FormatMinorUnits(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// Currency is a three-letter ISO-4217 code.
type Currency string

// Valid reports whether c is syntactically a three-letter uppercase code.
func (c Currency) Valid() bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range string(c) {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (c Currency) String() string { return string(c) }
