// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	// ErrUnsupportedCurrency is returned when an amount is written in anything other than USD.
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	five = decimal.NewFromInt(5)
)

// ParseAmount reads a string as a valid currency symbol and quantity.
// Examples:
//
//	USD 12.53
//	12.53
//
// Only USD amounts are accepted as advances are disbursed in dollars.
func ParseAmount(in string) (decimal.Decimal, error) {
	parts := strings.Fields(in)
	switch len(parts) {
	case 1:
		parts = []string{"USD", parts[0]}
	case 2:
	default:
		return decimal.Zero, fmt.Errorf("invalid amount format: %q", in)
	}

	sym, err := currency.ParseISO(parts[0])
	if err != nil {
		return decimal.Zero, err
	}
	if sym != currency.USD {
		return decimal.Zero, fmt.Errorf("%s: %w", sym, ErrUnsupportedCurrency)
	}

	amt, err := decimal.NewFromString(parts[1])
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to read %s: %v", parts[1], err)
	}
	if amt.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount: %s", parts[1])
	}
	return amt.Round(2), nil
}

// FormatAmount returns an amount formatted with the currency.
// Example: USD 12.53
func FormatAmount(amt decimal.Decimal) string {
	return fmt.Sprintf("%s %s", currency.USD, amt.StringFixed(2))
}

// Cents returns the amount as an integer number of cents, rounding half away from zero.
func Cents(amt decimal.Decimal) int {
	return int(amt.Shift(2).Round(0).IntPart())
}

// Sum adds every amount together.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for i := range amounts {
		total = total.Add(amounts[i])
	}
	return total
}

// FloorToFive rounds amt down to the nearest multiple of five dollars.
func FloorToFive(amt decimal.Decimal) decimal.Decimal {
	return amt.Div(five).Floor().Mul(five)
}
