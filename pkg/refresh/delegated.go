// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package refresh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/moov-io/collections/pkg/advances"
	"github.com/moov-io/collections/pkg/ledger"
	"github.com/moov-io/collections/pkg/model"
	"github.com/moov-io/collections/pkg/taskengine"

	"github.com/go-kit/kit/log"
)

// DelegatedTaskCollector hands the advance to the task engine and waits for its result.
type DelegatedTaskCollector struct {
	db     *sql.DB
	logger log.Logger
	client taskengine.Client
}

func NewDelegatedTaskCollector(logger log.Logger, db *sql.DB, client taskengine.Client) *DelegatedTaskCollector {
	return &DelegatedTaskCollector{
		db:     db,
		logger: logger,
		client: client,
	}
}

func (d *DelegatedTaskCollector) Name() string {
	return "task-engine"
}

func (d *DelegatedTaskCollector) Collect(ctx context.Context, adv *model.Advance, opts Options) (*Result, error) {
	adv, err := advances.GetAdvance(ctx, d.db, adv.ID)
	if err != nil {
		return nil, fmt.Errorf("reload advance: %v", err)
	}
	if adv == nil {
		return nil, ledger.ErrAdvanceNotFound
	}
	if !adv.Outstanding.IsPositive() {
		return &Result{Status: StatusSuccess}, nil
	}

	taskID, err := d.client.CreatePaymentTask(ctx, taskengine.TaskRequest{
		AdvanceID:      adv.ID,
		UserID:         adv.UserID,
		Amount:         adv.Outstanding,
		Trigger:        opts.Trigger,
		Caller:         opts.Caller,
		IdempotencyKey: opts.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating payment task: %v", err)
	}
	logger := log.With(d.logger, "advanceID", adv.ID, "taskID", taskID)
	logger.Log("refresh", fmt.Sprintf("created payment task for %s", model.FormatAmount(adv.Outstanding)))

	result, err := d.client.WaitForTaskResult(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("waiting on task %s: %v", taskID, err)
	}

	switch result.Status {
	case taskengine.ResultSuccess:
		var payments []*model.Payment
		for i := range result.PaymentIDs {
			payment, err := advances.GetPayment(ctx, d.db, result.PaymentIDs[i])
			if err != nil {
				return nil, fmt.Errorf("get payment: %v", err)
			}
			if payment == nil {
				logger.Log("refresh", fmt.Sprintf("task engine payment %s not found", result.PaymentIDs[i]))
				continue
			}
			payments = append(payments, payment)
		}
		return &Result{Status: StatusSuccess, Payments: payments}, nil

	case taskengine.ResultFailure, taskengine.ResultError:
		msg := result.Message
		if msg == "" {
			msg = fmt.Sprintf("task %s finished with %s", taskID, result.Status)
		}
		return &Result{Status: StatusFailure, Err: errors.New(msg)}, nil
	}
	return &Result{Status: StatusPending}, nil
}
