// Package money fixes the unit convention for the whole service: balances and
// totals are decimal major units; the gateway wire format is integer minor units.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Zero is the additive identity in major units.
func Zero() decimal.Decimal { return decimal.Zero }

// FromMajor builds an amount from a major-unit float as received in JSON bodies.
func FromMajor(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// ToMinor converts a major-unit amount to gateway minor units (x100, rounded
// to the nearest unit).
func ToMinor(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromMinor converts gateway minor units back to a major-unit amount (/100).
func FromMinor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}

// Percent computes base*pct/100 rounded to two decimal places, the precision
// carried by every stored amount.
func Percent(base decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred).Round(2)
}

// IsNegative reports whether the amount is below zero.
func IsNegative(d decimal.Decimal) bool { return d.Sign() < 0 }

// IsPositive reports whether the amount is strictly above zero.
func IsPositive(d decimal.Decimal) bool { return d.Sign() > 0 }
