// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package taskengine talks to the asynchronous repayment engine which advances can
// be handed off to instead of being collected directly.
package taskengine

import (
	"context"

	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
)

// Experiment marks advances which are collected through the task engine.
const Experiment = "task-engine-repayment"

type TaskRequest struct {
	AdvanceID      id.Advance      `json:"advanceID"`
	UserID         id.User         `json:"userID"`
	Amount         decimal.Decimal `json:"amount"`
	Trigger        model.Trigger   `json:"trigger"`
	Caller         string          `json:"caller"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

type ResultStatus string

const (
	ResultPending ResultStatus = "PENDING"
	ResultSuccess ResultStatus = "SUCCESS"
	ResultFailure ResultStatus = "FAILURE"
	ResultError   ResultStatus = "ERROR"
)

type TaskResult struct {
	TaskID     id.Task      `json:"taskID"`
	Status     ResultStatus `json:"result"`
	PaymentIDs []id.Payment `json:"paymentIDs,omitempty"`
	Message    string       `json:"message,omitempty"`
}

type Client interface {
	CreatePaymentTask(ctx context.Context, req TaskRequest) (id.Task, error)

	// WaitForTaskResult blocks until the task finishes or the client's wait timeout
	// passes, in which case a PENDING result is returned.
	WaitForTaskResult(ctx context.Context, taskID id.Task) (*TaskResult, error)

	// IsActiveElsewhere reports if the engine has an unfinished task for advanceID.
	IsActiveElsewhere(ctx context.Context, advanceID id.Advance) (bool, error)
}
