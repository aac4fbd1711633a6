// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package model

import (
	"time"

	"github.com/moov-io/collections/pkg/id"

	"github.com/shopspring/decimal"
)

// Trigger is the initiating cause of a collection attempt.
type Trigger string

const (
	TriggerDailyCron      Trigger = "DAILY_CRON"
	TriggerScheduledACH   Trigger = "SCHEDULED_ACH"
	TriggerWebhook        Trigger = "WEBHOOK"
	TriggerUserPayment    Trigger = "USER_PAYMENT"
	TriggerTaskEngine     Trigger = "TASK_ENGINE"
	TriggerAdmin          Trigger = "ADMIN"
	TriggerBalanceRefresh Trigger = "BALANCE_REFRESH"
)

func (t Trigger) Valid() bool {
	switch t {
	case TriggerDailyCron, TriggerScheduledACH, TriggerWebhook, TriggerUserPayment,
		TriggerTaskEngine, TriggerAdmin, TriggerBalanceRefresh:
		return true
	}
	return false
}

// CollectionAttempt is one guarded try to collect money against an advance.
//
// Processing is true while the attempt is in flight and nil once resolved. Only one
// attempt per advance may have Processing set at a time.
type CollectionAttempt struct {
	ID        id.Attempt      `json:"attemptID"`
	AdvanceID id.Advance      `json:"advanceID"`
	Amount    decimal.Decimal `json:"amount"`
	Trigger   Trigger         `json:"trigger"`

	Processing *bool       `json:"processing,omitempty"`
	PaymentID  *id.Payment `json:"paymentID,omitempty"`

	Failure *FailureReason `json:"failure,omitempty"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

func (a *CollectionAttempt) IsProcessing() bool {
	return a != nil && a.Processing != nil && *a.Processing
}

// Succeeded returns true when the attempt resolved with a linked payment and no failure.
func (a *CollectionAttempt) Succeeded() bool {
	return a != nil && a.PaymentID != nil && a.Failure == nil
}

// AttemptState is the lifecycle of a single collection attempt.
type AttemptState string

const (
	AttemptCreated    AttemptState = "created"
	AttemptValidating AttemptState = "validating"
	AttemptCharging   AttemptState = "charging"
	AttemptSucceeded  AttemptState = "succeeded"
	AttemptFailed     AttemptState = "failed"
	AttemptCleared    AttemptState = "cleared"
)
