// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func advance() *model.Advance {
	return &model.Advance{
		ID:                 id.Advance("adv"),
		UserID:             id.User("user"),
		Amount:             dec("75"),
		Fee:                dec("5"),
		TipAmount:          dec("0"),
		Outstanding:        dec("80"),
		DisbursementStatus: model.DisbursementCompleted,
	}
}

func payment(amt string, status model.PaymentStatus) *model.Payment {
	return &model.Payment{AdvanceID: "adv", Amount: dec(amt), Status: status}
}

func reversal(amt string, status model.ReversalStatus) *model.Reversal {
	return &model.Reversal{AdvanceID: "adv", Amount: dec(amt), Status: status}
}

func TestReceivable(t *testing.T) {
	adv := advance()
	adv.TipAmount = dec("2.50")
	require.Equal(t, "82.5", Receivable(adv).String())

	adv.DisbursementStatus = model.DisbursementCanceled
	require.True(t, Receivable(adv).IsZero())

	require.True(t, Receivable(nil).IsZero())
}

func TestNetCollected(t *testing.T) {
	payments := []*model.Payment{
		payment("10", model.PaymentPending),
		payment("20", model.PaymentCompleted),
		payment("5", model.PaymentChargeback),
		payment("1", model.PaymentUnknown),
		payment("100", model.PaymentReturned),
		payment("100", model.PaymentCanceled),
	}
	reversals := []*model.Reversal{
		reversal("3", model.ReversalCompleted),
		reversal("2", model.ReversalPending),
		reversal("50", model.ReversalFailed),
	}
	require.Equal(t, "31", NetCollected(payments, reversals).String())
	require.True(t, NetCollected(nil, nil).IsZero())
}

func TestOutstanding(t *testing.T) {
	adv := advance()

	cases := []struct {
		payments  []*model.Payment
		reversals []*model.Reversal
		expected  string
	}{
		{nil, nil, "80"},
		{[]*model.Payment{payment("80", model.PaymentCompleted)}, nil, "0"},
		{[]*model.Payment{payment("80", model.PaymentReturned)}, nil, "80"},
		{[]*model.Payment{payment("30", model.PaymentPending), payment("50", model.PaymentCompleted)}, nil, "0"},
		{[]*model.Payment{payment("80", model.PaymentCompleted)}, []*model.Reversal{reversal("10", model.ReversalCompleted)}, "10"},
		{[]*model.Payment{payment("80", model.PaymentCompleted)}, []*model.Reversal{reversal("10", model.ReversalFailed)}, "0"},
	}
	for i := range cases {
		out := Outstanding(adv, cases[i].payments, cases[i].reversals)
		require.Equal(t, cases[i].expected, out.String(), "case #%d", i)

		// outstanding = receivable - net collected
		require.True(t, Receivable(adv).Sub(NetCollected(cases[i].payments, cases[i].reversals)).Equal(out))
	}
}

func TestRetrievalAmount(t *testing.T) {
	opts := DefaultRetrievalOptions()

	cases := []struct {
		outstanding string
		balances    model.Balances
		threshold   string
		full        bool
		expected    *string
	}{
		{"80", model.Balances{Available: decPtr("200")}, "5", false, strPtr("80")},
		{"80", model.Balances{Available: decPtr("42")}, "10", false, strPtr("30")},
		{"80", model.Balances{Available: decPtr("12")}, "10", false, strPtr("0")},
		{"80", model.Balances{Available: decPtr("9.99")}, "10", false, nil},
		{"80", model.Balances{}, "5", false, nil},
		{"80", model.Balances{Available: decPtr("200"), Current: decPtr("50")}, "5", false, strPtr("45")},
		{"80", model.Balances{Current: decPtr("85")}, "5", false, strPtr("80")},
		{"80", model.Balances{Available: decPtr("84.99")}, "5", false, strPtr("75")},
		{"80", model.Balances{Available: decPtr("85")}, "5", true, strPtr("80")},
		{"80", model.Balances{Available: decPtr("84.99")}, "5", true, nil},
	}
	for i, tc := range cases {
		opts.MinThreshold = dec(tc.threshold)
		opts.RetrieveFullOutstanding = tc.full

		amt := RetrievalAmount(dec(tc.outstanding), tc.balances, opts)
		if tc.expected == nil {
			require.Nil(t, amt, "case #%d", i)
			continue
		}
		require.NotNil(t, amt, "case #%d", i)
		require.True(t, dec(*tc.expected).Equal(*amt), "case #%d: got %s", i, amt)
	}
}

func TestRetrievalAmount__rounding(t *testing.T) {
	opts := DefaultRetrievalOptions()
	outstanding := dec("1000")

	for cents := int64(0); cents < 10000; cents += 37 {
		balance := decimal.New(cents, -2)
		amt := RetrievalAmount(outstanding, model.Balances{Available: &balance}, opts)
		if amt == nil {
			require.True(t, balance.LessThan(opts.MinThreshold))
			continue
		}
		require.False(t, amt.IsNegative())
		require.True(t, amt.Mod(decimal.NewFromInt(5)).IsZero(), "%s not a multiple of 5", amt)
		require.True(t, amt.Add(opts.MinThreshold).LessThanOrEqual(balance))
	}
}

func strPtr(s string) *string {
	return &s
}

func TestValidatePaymentAmount(t *testing.T) {
	balances := model.Balances{Available: decPtr("100"), Current: decPtr("120")}

	require.True(t, ValidatePaymentAmount(dec("95"), balances, DefaultMinThreshold))
	require.False(t, ValidatePaymentAmount(dec("95.01"), balances, DefaultMinThreshold))
	require.False(t, ValidatePaymentAmount(dec("0"), balances, DefaultMinThreshold))
	require.False(t, ValidatePaymentAmount(dec("10"), model.Balances{}, DefaultMinThreshold))
}

func TestCheckPredictedOutstanding(t *testing.T) {
	adv := advance()
	payments := []*model.Payment{payment("50", model.PaymentPending)}

	require.NoError(t, CheckPredictedOutstanding(adv, payments, nil, dec("30")))

	err := CheckPredictedOutstanding(adv, payments, nil, dec("30.01"))
	require.True(t, errors.Is(err, ErrOvercollection))
}

func TestCalculator__ComputeOutstanding(t *testing.T) {
	adv := advance()
	store := &MockStore{
		Advances: map[id.Advance]*model.Advance{adv.ID: adv},
		Payments: []*model.Payment{
			payment("20", model.PaymentCompleted),
			payment("10", model.PaymentReturned),
		},
		Reversals: []*model.Reversal{
			reversal("5", model.ReversalPending),
		},
	}
	calc := NewCalculator(store)
	ctx := context.Background()

	out, err := calc.ComputeOutstanding(ctx, adv.ID)
	require.NoError(t, err)
	require.Equal(t, "65", out.Outstanding.String())
	require.Equal(t, 1, store.Updates)

	// recomputing again doesn't change anything
	out, err = calc.ComputeOutstanding(ctx, adv.ID)
	require.NoError(t, err)
	require.Equal(t, "65", out.Outstanding.String())
	require.Equal(t, 1, store.Updates)

	_, err = calc.ComputeOutstanding(ctx, id.Advance("missing"))
	require.True(t, errors.Is(err, ErrAdvanceNotFound))

	store.Err = errors.New("bad")
	_, err = calc.ComputeOutstanding(ctx, adv.ID)
	require.Error(t, err)
}
