// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package model

import (
	"time"

	"github.com/moov-io/collections/pkg/id"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	Checking AccountType = "checking"
	Savings  AccountType = "savings"
)

// Balances are the live balance fields of a bank account. Either may be unknown.
type Balances struct {
	Available *decimal.Decimal `json:"available,omitempty"`
	Current   *decimal.Decimal `json:"current,omitempty"`
}

// Usable returns the balance we're willing to collect against, which is the smaller
// of Available and Current when both are known.
func (b Balances) Usable() (decimal.Decimal, bool) {
	switch {
	case b.Available != nil && b.Current != nil:
		return decimal.Min(*b.Available, *b.Current), true
	case b.Available != nil:
		return *b.Available, true
	case b.Current != nil:
		return *b.Current, true
	}
	return decimal.Zero, false
}

// BankAccount is an ACH eligible funding source.
type BankAccount struct {
	ID     id.BankAccount `json:"bankAccountID"`
	UserID id.User        `json:"userID"`

	// Primary is set on the main account of each of a user's bank connections
	Primary bool `json:"primary"`

	HolderName             string      `json:"holderName"`
	RoutingNumber          string      `json:"routingNumber"`
	EncryptedAccountNumber string      `json:"-"`
	Type                   AccountType `json:"type"`

	Balances         Balances          `json:"balances"`
	BalancesUpdated  *time.Time        `json:"balancesUpdated,omitempty"`
	DefaultPaymentID *id.PaymentMethod `json:"defaultPaymentMethodID,omitempty"`

	Created time.Time `json:"created"`
}

// PaymentMethod is a debit card funding source.
type PaymentMethod struct {
	ID            id.PaymentMethod `json:"paymentMethodID"`
	UserID        id.User          `json:"userID"`
	BankAccountID *id.BankAccount  `json:"bankAccountID,omitempty"`

	Mask string `json:"mask"`

	// EncryptedRef is the processor token used to charge the card
	EncryptedRef string `json:"-"`

	// Linked is set once the card has been confirmed live against its bank account
	Linked  bool `json:"linked"`
	Invalid bool `json:"invalid"`

	Created time.Time `json:"created"`
}

// Usable returns true if the card can be charged at all.
func (pm *PaymentMethod) Usable() bool {
	return pm != nil && !pm.Invalid && pm.EncryptedRef != ""
}

// FundingPair is one bank account and (optionally) its debit card, tried together.
type FundingPair struct {
	Account *BankAccount
	Card    *PaymentMethod
}
