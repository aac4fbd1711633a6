// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package model

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	amt, err := ParseAmount("USD 12.53")
	require.NoError(t, err)
	require.True(t, amt.Equal(decimal.RequireFromString("12.53")))

	amt, err = ParseAmount("5")
	require.NoError(t, err)
	require.True(t, amt.Equal(decimal.NewFromInt(5)))

	amt, err = ParseAmount("USD 1.005")
	require.NoError(t, err)
	require.Equal(t, "1.01", amt.StringFixed(2))
}

func TestParseAmountErr(t *testing.T) {
	_, err := ParseAmount("")
	require.Error(t, err)

	_, err = ParseAmount("USD 1 2")
	require.Error(t, err)

	_, err = ParseAmount("ZZZ 12.00")
	require.Error(t, err)

	_, err = ParseAmount("GBP 12.00")
	require.True(t, errors.Is(err, ErrUnsupportedCurrency))

	_, err = ParseAmount("USD -1.00")
	require.Error(t, err)

	_, err = ParseAmount("USD abc")
	require.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "USD 80.00", FormatAmount(decimal.NewFromInt(80)))
	require.Equal(t, "USD 0.10", FormatAmount(decimal.RequireFromString("0.1")))
}

func TestCents(t *testing.T) {
	require.Equal(t, 8000, Cents(decimal.NewFromInt(80)))
	require.Equal(t, 1253, Cents(decimal.RequireFromString("12.53")))
	require.Equal(t, 1, Cents(decimal.RequireFromString("0.005")))
}

func TestSum(t *testing.T) {
	// ten dimes should be exactly a dollar
	var dimes []decimal.Decimal
	for i := 0; i < 10; i++ {
		dimes = append(dimes, decimal.RequireFromString("0.10"))
	}
	require.True(t, Sum(dimes...).Equal(decimal.NewFromInt(1)))
	require.True(t, Sum().IsZero())
}

func TestFloorToFive(t *testing.T) {
	cases := map[string]string{
		"32":    "30",
		"34.99": "30",
		"35":    "35",
		"4.99":  "0",
		"2":     "0",
	}
	for in, expected := range cases {
		got := FloorToFive(decimal.RequireFromString(in))
		require.True(t, got.Equal(decimal.RequireFromString(expected)), "in=%s got=%s", in, got)
	}
}
