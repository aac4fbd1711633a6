// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package model

import (
	"fmt"
	"time"

	"github.com/moov-io/collections/pkg/id"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentReturned   PaymentStatus = "RETURNED"
	PaymentCanceled   PaymentStatus = "CANCELED"
	PaymentChargeback PaymentStatus = "CHARGEBACK"
	PaymentUnknown    PaymentStatus = "UNKNOWN"
)

// Collected returns true for statuses whose amount counts toward what has been collected.
//
// UNKNOWN is counted because money may have moved and collecting again risks overcollection.
func (s PaymentStatus) Collected() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentChargeback, PaymentUnknown:
		return true
	}
	return false
}

// Terminal returns true once no further processor updates are expected.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentReturned, PaymentCanceled, PaymentChargeback:
		return true
	}
	return false
}

// CanTransitionTo reports if a payment in status s may be moved into next.
//
// Transitions only move toward a terminal status, except COMPLETED payments which
// can still be RETURNED or charged back.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case PaymentPending, PaymentUnknown:
		return next != PaymentPending && next != PaymentUnknown
	case PaymentCompleted:
		return next == PaymentReturned || next == PaymentChargeback
	}
	return false
}

// Payment is one external money movement against an advance.
type Payment struct {
	ID        id.Payment `json:"paymentID"`
	AdvanceID id.Advance `json:"advanceID"`
	UserID    id.User    `json:"userID"`

	Amount decimal.Decimal `json:"amount"`

	// ReferenceID is the idempotency key handed to the processor
	ReferenceID string `json:"referenceID"`

	Status            PaymentStatus `json:"status"`
	ExternalID        string        `json:"externalID,omitempty"`
	ExternalProcessor string        `json:"externalProcessor,omitempty"`

	BankAccountID   *id.BankAccount   `json:"bankAccountID,omitempty"`
	PaymentMethodID *id.PaymentMethod `json:"paymentMethodID,omitempty"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

func (p *Payment) String() string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Payment{ID=%s amount=%s status=%s processor=%s}", p.ID, FormatAmount(p.Amount), p.Status, p.ExternalProcessor)
}

type ReversalStatus string

const (
	ReversalPending   ReversalStatus = "PENDING"
	ReversalCompleted ReversalStatus = "COMPLETED"
	ReversalFailed    ReversalStatus = "FAILED"
)

// Credited returns true for reversal statuses which reduce what has been collected.
func (s ReversalStatus) Credited() bool {
	return s == ReversalPending || s == ReversalCompleted
}

// Reversal is a refund or reversal credited back to the user against an advance.
type Reversal struct {
	ID        string      `json:"reversalID"`
	AdvanceID id.Advance  `json:"advanceID"`
	PaymentID *id.Payment `json:"paymentID,omitempty"`

	Amount decimal.Decimal `json:"amount"`
	Status ReversalStatus  `json:"status"`

	Created time.Time `json:"created"`
}
