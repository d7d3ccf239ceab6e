// Package core holds the ledger domain: transactions, accounts, rules,
// the category taxonomy and the money helpers shared by every layer.
//
// This file contains amount parsing and display formatting. Amounts are
// exact signed decimals; no float64 ever carries money.
package core

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered amount into an exact signed decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. Returns ErrInvalidAmount for anything that does not
// parse as a number.
//
// Examples:
//
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("-45.30") -> -45.30
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FormatAmount renders an amount for display using the currency's own
// formatting rules (symbol, fraction digits, separators). Unknown codes fall
// back to a plain fixed-point rendering with the code appended.
func FormatAmount(amount decimal.Decimal, currency string) string {
	currency = NormalizeCurrency(currency)
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}
	shifted := amount.Shift(int32(cur.Fraction))
	return money.New(shifted.IntPart(), currency).Display()
}
