// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package rules holds the business rules checked before collecting from a user.
package rules

import (
	"context"
	"fmt"

	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
)

// Validator rejects attempts which break the configured limits.
type Validator struct {
	hardLimit     *decimal.Decimal
	maxSuccessful int
}

func NewValidator(limits config.Limits, cfg config.Collection) (*Validator, error) {
	v := &Validator{
		maxSuccessful: cfg.MaxSuccessfulAttempts,
	}
	if limits.Fixed != nil {
		limit, err := model.ParseAmount(limits.Fixed.HardLimit)
		if err != nil {
			return nil, fmt.Errorf("rules: hard limit: %v", err)
		}
		v.hardLimit = &limit
	}
	return v, nil
}

func (v *Validator) Validate(_ context.Context, adv *model.Advance, amount decimal.Decimal, successfulAttempts int, trigger model.Trigger, activeElsewhere bool) []model.FailureReason {
	var reasons []model.FailureReason
	reject := func(msg string) {
		reasons = append(reasons, model.NewFailure(model.FailureValidation, msg))
	}

	switch adv.DisbursementStatus {
	case model.DisbursementCanceled, model.DisbursementReturned:
		reject(fmt.Sprintf("advance disbursement was %s", adv.DisbursementStatus))
	}
	if !adv.Outstanding.IsPositive() {
		reject("advance has no outstanding balance")
	}
	if !amount.IsPositive() {
		reject("amount must be positive")
	}
	if v.hardLimit != nil && amount.GreaterThan(*v.hardLimit) {
		reject(fmt.Sprintf("amount is over the limit of %s", model.FormatAmount(*v.hardLimit)))
	}
	if v.maxSuccessful > 0 && successfulAttempts >= v.maxSuccessful {
		reject(fmt.Sprintf("advance already has %d successful collections", successfulAttempts))
	}
	if activeElsewhere && trigger != model.TriggerTaskEngine {
		reject("advance is being collected by the task engine")
	}
	return reasons
}
