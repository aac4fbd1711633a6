// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package ledger computes what is owed on an advance from its append-only
// ledger of payments and reversals, and how much can safely be pulled from
// a bank account.
package ledger

import (
	"errors"
	"fmt"

	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
)

var (
	// DefaultMinThreshold is the balance left behind in a bank account after a retrieval.
	DefaultMinThreshold = decimal.NewFromInt(5)

	ErrOvercollection = errors.New("payment exceeds predicted outstanding")
)

// Receivable is everything owed on an advance. Canceled disbursements are owed nothing.
func Receivable(adv *model.Advance) decimal.Decimal {
	if adv == nil || adv.DisbursementStatus == model.DisbursementCanceled {
		return decimal.Zero
	}
	return model.Sum(adv.Amount, adv.Fee, adv.TipAmount)
}

// NetCollected sums the payments which count towards repayment and subtracts
// reversals credited back to the user.
func NetCollected(payments []*model.Payment, reversals []*model.Reversal) decimal.Decimal {
	total := decimal.Zero
	for i := range payments {
		if payments[i] != nil && payments[i].Status.Collected() {
			total = total.Add(payments[i].Amount)
		}
	}
	for i := range reversals {
		if reversals[i] != nil && reversals[i].Status.Credited() {
			total = total.Sub(reversals[i].Amount)
		}
	}
	return total
}

func Outstanding(adv *model.Advance, payments []*model.Payment, reversals []*model.Reversal) decimal.Decimal {
	return Receivable(adv).Sub(NetCollected(payments, reversals))
}

type RetrievalOptions struct {
	MinThreshold decimal.Decimal

	// RetrieveFullOutstanding only allows collecting the entire outstanding amount.
	RetrieveFullOutstanding bool
}

func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{
		MinThreshold: DefaultMinThreshold,
	}
}

// RetrievalAmount returns how much to pull from an account with the given balances.
//
// nil means the balance is unknown or too low to collect anything. A zero amount
// means the balance cleared the threshold but rounding down left nothing.
func RetrievalAmount(outstanding decimal.Decimal, balances model.Balances, opts RetrievalOptions) *decimal.Decimal {
	balance, ok := balances.Usable()
	if !ok || balance.LessThan(opts.MinThreshold) {
		return nil
	}

	spendable := balance.Sub(opts.MinThreshold)
	if opts.RetrieveFullOutstanding {
		if spendable.GreaterThanOrEqual(outstanding) {
			return &outstanding
		}
		return nil
	}

	if outstanding.Add(opts.MinThreshold).LessThanOrEqual(balance) {
		return &outstanding
	}

	amt := model.FloorToFive(spendable)
	if amt.LessThanOrEqual(decimal.Zero) {
		amt = decimal.Zero
	}
	return &amt
}

// ValidatePaymentAmount returns true if amount can be pulled while leaving
// minThreshold in the account.
func ValidatePaymentAmount(amount decimal.Decimal, balances model.Balances, minThreshold decimal.Decimal) bool {
	balance, ok := balances.Usable()
	if !ok || !amount.IsPositive() {
		return false
	}
	return amount.Add(minThreshold).LessThanOrEqual(balance)
}

// CheckPredictedOutstanding returns ErrOvercollection if amount is more than what
// will be owed once every collected payment settles.
func CheckPredictedOutstanding(adv *model.Advance, payments []*model.Payment, reversals []*model.Reversal, amount decimal.Decimal) error {
	predicted := Outstanding(adv, payments, reversals)
	if amount.GreaterThan(predicted) {
		return fmt.Errorf("%w: amount=%s outstanding=%s", ErrOvercollection, model.FormatAmount(amount), model.FormatAmount(predicted))
	}
	return nil
}
