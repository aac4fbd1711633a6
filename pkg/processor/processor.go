// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package processor moves money out of a user's debit card or bank account.
package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
)

var (
	ErrNoCardProcessor = errors.New("no card processor configured")
	ErrNoACHProcessor  = errors.New("no ACH processor configured")
)

// Response is the outcome of a charge along with the funding source which was used.
type Response struct {
	ExternalID string
	Status     model.PaymentStatus
	Processor  string

	BankAccountID   *id.BankAccount
	PaymentMethodID *id.PaymentMethod
}

// Error is a declined or failed charge as reported by a processor.
type Error struct {
	Processor string
	Code      string
	Message   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: code=%s: %s", e.Processor, e.Code, e.Message)
}

// AsError returns the *Error wrapped in err, if any.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

type CardProcessor interface {
	ChargeCard(ctx context.Context, card *model.PaymentMethod, amount decimal.Decimal, referenceID string) (*Response, error)
}

type ACHProcessor interface {
	ChargeACH(ctx context.Context, account *model.BankAccount, amount decimal.Decimal, referenceID string) (*Response, error)
}

// Gateway routes charges to the configured card and ACH processors.
type Gateway struct {
	card CardProcessor
	ach  ACHProcessor
}

// NewGateway returns a Gateway. Either processor can be nil when not configured.
func NewGateway(card CardProcessor, ach ACHProcessor) *Gateway {
	return &Gateway{card: card, ach: ach}
}

func (g *Gateway) ChargeCard(ctx context.Context, card *model.PaymentMethod, amount decimal.Decimal, referenceID string) (*Response, error) {
	if g == nil || g.card == nil {
		return nil, ErrNoCardProcessor
	}
	if card == nil {
		return nil, errors.New("nil PaymentMethod")
	}
	resp, err := g.card.ChargeCard(ctx, card, amount, referenceID)
	if resp != nil && resp.PaymentMethodID == nil {
		resp.PaymentMethodID = &card.ID
		resp.BankAccountID = card.BankAccountID
	}
	return resp, err
}

func (g *Gateway) ChargeACH(ctx context.Context, account *model.BankAccount, amount decimal.Decimal, referenceID string) (*Response, error) {
	if g == nil || g.ach == nil {
		return nil, ErrNoACHProcessor
	}
	if account == nil {
		return nil, errors.New("nil BankAccount")
	}
	resp, err := g.ach.ChargeACH(ctx, account, amount, referenceID)
	if resp != nil && resp.BankAccountID == nil {
		resp.BankAccountID = &account.ID
	}
	return resp, err
}
