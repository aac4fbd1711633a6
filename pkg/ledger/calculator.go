// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
)

// Store reads an advance's ledger and persists the derived outstanding amount.
type Store interface {
	GetAdvance(ctx context.Context, advanceID id.Advance) (*model.Advance, error)
	ListPayments(ctx context.Context, advanceID id.Advance) ([]*model.Payment, error)
	ListReversals(ctx context.Context, advanceID id.Advance) ([]*model.Reversal, error)
	UpdateOutstanding(ctx context.Context, advanceID id.Advance, outstanding decimal.Decimal) error
}

var ErrAdvanceNotFound = errors.New("advance not found")

type Calculator struct {
	store Store
}

func NewCalculator(store Store) *Calculator {
	return &Calculator{store: store}
}

// ComputeOutstanding recomputes the outstanding amount of an advance from its
// payments and reversals, persists it and returns the updated advance.
func (c *Calculator) ComputeOutstanding(ctx context.Context, advanceID id.Advance) (*model.Advance, error) {
	adv, err := c.store.GetAdvance(ctx, advanceID)
	if err != nil {
		return nil, fmt.Errorf("get advance=%s: %w", advanceID, err)
	}
	if adv == nil {
		return nil, ErrAdvanceNotFound
	}

	payments, err := c.store.ListPayments(ctx, advanceID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	reversals, err := c.store.ListReversals(ctx, advanceID)
	if err != nil {
		return nil, fmt.Errorf("list reversals: %w", err)
	}

	outstanding := Outstanding(adv, payments, reversals)
	if !outstanding.Equal(adv.Outstanding) {
		if err := c.store.UpdateOutstanding(ctx, advanceID, outstanding); err != nil {
			return nil, fmt.Errorf("update outstanding: %w", err)
		}
	}
	adv.Outstanding = outstanding
	return adv, nil
}
