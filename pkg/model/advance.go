// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package model

import (
	"time"

	"github.com/moov-io/collections/pkg/id"

	"github.com/shopspring/decimal"
)

type DisbursementStatus string

const (
	DisbursementPending   DisbursementStatus = "PENDING"
	DisbursementCompleted DisbursementStatus = "COMPLETED"
	DisbursementCanceled  DisbursementStatus = "CANCELED"
	DisbursementReturned  DisbursementStatus = "RETURNED"
	DisbursementUnknown   DisbursementStatus = "UNKNOWN"
)

// DisbursementMethod is the rail an advance was originally paid out on.
type DisbursementMethod string

const (
	DisbursedDebitCard DisbursementMethod = "DEBIT_CARD"
	DisbursedACH       DisbursementMethod = "ACH"
)

// Advance is a short-term cash advance owed by a user.
//
// Outstanding is derived from the payment and reversal ledger and only ever written by
// the ledger recompute step.
type Advance struct {
	ID     id.Advance `json:"advanceID"`
	UserID id.User    `json:"userID"`

	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	TipAmount decimal.Decimal `json:"tipAmount"`

	Outstanding decimal.Decimal `json:"outstanding"`

	PaybackDate time.Time `json:"paybackDate"`

	DisbursementStatus DisbursementStatus `json:"disbursementStatus"`
	DisbursementMethod DisbursementMethod `json:"disbursementMethod"`

	BankAccountID   id.BankAccount    `json:"bankAccountID"`
	PaymentMethodID *id.PaymentMethod `json:"paymentMethodID,omitempty"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// PaybackPassed returns true when the advance's payback date is before the calendar day of now.
func (adv *Advance) PaybackPassed(now time.Time) bool {
	if adv == nil || adv.PaybackDate.IsZero() {
		return false
	}
	y1, m1, d1 := adv.PaybackDate.Date()
	payback := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)

	y2, m2, d2 := now.In(adv.PaybackDate.Location()).Date()
	today := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)

	return payback.Before(today)
}
