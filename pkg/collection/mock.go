// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package collection

import (
	"context"
	"sync"

	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
)

type MockValidator struct {
	Reasons []model.FailureReason
}

func (v *MockValidator) Validate(_ context.Context, _ *model.Advance, _ decimal.Decimal, _ int, _ model.Trigger, _ bool) []model.FailureReason {
	return v.Reasons
}

type MockActivity struct {
	Active bool
	Err    error
}

func (a *MockActivity) IsActiveElsewhere(_ context.Context, _ id.Advance) (bool, error) {
	return a.Active, a.Err
}

type MockEvents struct {
	mu sync.Mutex

	Updated   []*model.Payment
	Succeeded []*model.Payment
	Missed    []model.FailureReason
}

func (e *MockEvents) PaymentUpdated(_ *model.Advance, payment *model.Payment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Updated = append(e.Updated, payment)
}

func (e *MockEvents) CollectionSucceeded(_ *model.Advance, payment *model.Payment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Succeeded = append(e.Succeeded, payment)
}

func (e *MockEvents) PaybackMissed(_ *model.Advance, reason model.FailureReason) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Missed = append(e.Missed, reason)
}
