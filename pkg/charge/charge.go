// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package charge decides which rails are used to collect a payment.
package charge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moov-io/collections/pkg/model"
	"github.com/moov-io/collections/pkg/processor"
	"github.com/moov-io/collections/pkg/schedule"

	"github.com/go-kit/kit/log"
	"github.com/shopspring/decimal"
)

var ErrNoFundingSource = errors.New("no usable funding source")

// Func moves amount for payment. The payment's ReferenceID is passed to the processor as
// its idempotency key. The response carries the funding source which was charged.
type Func func(ctx context.Context, amount decimal.Decimal, payment *model.Payment) (*processor.Response, error)

type Gateway interface {
	ChargeCard(ctx context.Context, card *model.PaymentMethod, amount decimal.Decimal, referenceID string) (*processor.Response, error)
	ChargeACH(ctx context.Context, account *model.BankAccount, amount decimal.Decimal, referenceID string) (*processor.Response, error)
}

// Selector builds charge functions for a funding pair.
type Selector struct {
	gateway Gateway
	windows *schedule.Windows
	codes   processor.Codes
	logger  log.Logger

	now func() time.Time
}

func NewSelector(logger log.Logger, gateway Gateway, windows *schedule.Windows, codes processor.Codes) *Selector {
	return &Selector{
		gateway: gateway,
		windows: windows,
		codes:   codes,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces how the current time is read when checking ACH windows.
func (s *Selector) SetClock(now func() time.Time) {
	s.now = now
}

// Build returns the Func used to collect adv from card and account. Nothing is charged
// until the Func is called.
//
// Cards are charged first when they are usable and either confirmed against the bank
// account or the advance was disbursed over ACH. Otherwise the account is debited over ACH.
func (s *Selector) Build(adv *model.Advance, card *model.PaymentMethod, account *model.BankAccount) (Func, error) {
	if adv == nil {
		return nil, errors.New("nil Advance")
	}
	if card.Usable() && (card.Linked || adv.DisbursementMethod == model.DisbursedACH) {
		return s.cardFirst(adv, card, account), nil
	}
	if account == nil {
		return nil, ErrNoFundingSource
	}
	return s.achOnly(adv, account), nil
}

func (s *Selector) cardFirst(adv *model.Advance, card *model.PaymentMethod, account *model.BankAccount) Func {
	return func(ctx context.Context, amount decimal.Decimal, payment *model.Payment) (*processor.Response, error) {
		resp, err := s.gateway.ChargeCard(ctx, card, amount, payment.ReferenceID)
		if err == nil {
			return resp, nil
		}

		nsf := s.codes.IsInsufficientFunds(err)
		if nsf && card.Linked {
			return nil, err
		}
		if !nsf && !s.codes.IsRecoverable(err) {
			return nil, err
		}
		if account == nil {
			return nil, err
		}

		now := s.now()
		if !s.windows.InSameDayWindow(now) {
			return nil, &model.OutsideACHWindowError{At: now, Cause: err}
		}

		s.logger.Log("charge", fmt.Sprintf("falling back to ACH after card error: %v", err),
			"advanceID", adv.ID, "paymentMethodID", card.ID, "bankAccountID", account.ID)

		return s.gateway.ChargeACH(ctx, account, amount, payment.ReferenceID)
	}
}

func (s *Selector) achOnly(adv *model.Advance, account *model.BankAccount) Func {
	return func(ctx context.Context, amount decimal.Decimal, payment *model.Payment) (*processor.Response, error) {
		now := s.now()
		if !s.windows.InACHWindow(now) {
			return nil, &model.OutsideACHWindowError{At: now}
		}
		return s.gateway.ChargeACH(ctx, account, amount, payment.ReferenceID)
	}
}
