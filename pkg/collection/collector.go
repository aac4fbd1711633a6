// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package collection runs guarded collection attempts against an advance.
//
// At most one attempt per advance is in flight at a time. Attempts left processing by a
// crashed process are cleared once they're older than the stale timeout.
package collection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/moov-io/base"
	"github.com/moov-io/collections/pkg/advances"
	"github.com/moov-io/collections/pkg/charge"
	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/database"
	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/ledger"
	"github.com/moov-io/collections/pkg/model"
	"github.com/moov-io/collections/pkg/processor"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var (
	collectionAttempts = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "collection_attempts",
		Help: "Counter of collection attempts by trigger and result",
	}, []string{"trigger", "result"})

	staleAttemptsCleared = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "collection_stale_attempts_cleared",
		Help: "Counter of processing attempts cleared after exceeding the stale timeout",
	}, nil)
)

// Validator runs business rules before any money moves. An empty result means the
// attempt may proceed.
type Validator interface {
	Validate(ctx context.Context, adv *model.Advance, amount decimal.Decimal, successfulAttempts int, trigger model.Trigger, activeElsewhere bool) []model.FailureReason
}

// ActivityChecker reports if another system is currently collecting the advance.
type ActivityChecker interface {
	IsActiveElsewhere(ctx context.Context, advanceID id.Advance) (bool, error)
}

// Events receives the side effects of an attempt. Implementations must not block.
type Events interface {
	PaymentUpdated(adv *model.Advance, payment *model.Payment)
	CollectionSucceeded(adv *model.Advance, payment *model.Payment)
	PaybackMissed(adv *model.Advance, reason model.FailureReason)
}

type Collector struct {
	db     *sql.DB
	logger log.Logger

	validator Validator
	activity  ActivityChecker
	events    Events
	codes     processor.Codes

	staleTimeout time.Duration
}

func NewCollector(logger log.Logger, db *sql.DB, cfg config.Collection, codes processor.Codes, validator Validator, activity ActivityChecker, events Events) *Collector {
	stale := cfg.StaleAttemptTimeout
	if stale <= 0 {
		stale = 30 * time.Minute
	}
	return &Collector{
		db:           db,
		logger:       logger,
		validator:    validator,
		activity:     activity,
		events:       events,
		codes:        codes,
		staleTimeout: stale,
	}
}

// Collect runs one attempt to collect amount from adv with chargeFn.
//
// ErrConflict is returned without an attempt when another attempt is processing.
// Otherwise the attempt is returned along with any error which failed it.
func (c *Collector) Collect(ctx context.Context, adv *model.Advance, amount decimal.Decimal, chargeFn charge.Func, trigger model.Trigger, at time.Time) (*model.CollectionAttempt, error) {
	if adv == nil {
		return nil, errors.New("nil Advance")
	}
	if chargeFn == nil {
		return nil, errors.New("nil charge func")
	}
	if at.IsZero() {
		at = time.Now()
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "collection-attempt")
	defer span.Finish()
	span.SetTag("advanceID", adv.ID.String())
	span.SetTag("trigger", string(trigger))

	logger := log.With(c.logger, "advanceID", adv.ID, "trigger", trigger)

	n, err := ClearStale(ctx, c.db, adv.ID, at.Add(-c.staleTimeout))
	if err != nil {
		return nil, fmt.Errorf("clear stale attempts: %v", err)
	}
	if n > 0 {
		staleAttemptsCleared.Add(float64(n))
		logger.Log("collection", fmt.Sprintf("cleared %d stale attempts", n))
	}

	processing := true
	attempt := &model.CollectionAttempt{
		ID:         id.Attempt(base.ID()),
		AdvanceID:  adv.ID,
		Amount:     amount,
		Trigger:    trigger,
		Processing: &processing,
		Created:    at,
	}
	if err := CreateAttempt(ctx, c.db, attempt); err != nil {
		if err == ErrConflict {
			collectionAttempts.With("trigger", string(trigger), "result", "conflict").Add(1)
			logger.Log("collection", "another attempt is processing")
		}
		return nil, err
	}
	logger = log.With(logger, "attemptID", attempt.ID)
	transition(logger, model.AttemptCreated)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		reason := model.NewFailure(model.FailureUnexpected, fmt.Sprintf("panic: %v", r))
		attempt.Failure = &reason
		if rerr := RecordFailure(cleanupCtx, c.db, attempt.ID, reason); rerr != nil {
			logger.Log("collection", fmt.Sprintf("problem recording failure: %v", rerr))
		}
		logger.Log("collection", fmt.Sprintf("attempt panicked: %v", r))
		transition(logger, model.AttemptFailed)
		c.clear(cleanupCtx, logger, attempt)
		collectionAttempts.With("trigger", string(trigger), "result", string(reason.Kind)).Add(1)
		panic(r)
	}()

	payment, updated, err := c.attempt(ctx, logger, attempt, adv.ID, amount, chargeFn, trigger)
	if updated != nil {
		adv = updated
	}

	// Resolve the attempt even if ctx was cancelled.
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result := "success"
	if err != nil {
		reason := Classify(err, c.codes)
		attempt.Failure = &reason
		result = string(reason.Kind)

		if rerr := RecordFailure(cleanupCtx, c.db, attempt.ID, reason); rerr != nil {
			logger.Log("collection", fmt.Sprintf("problem recording failure: %v", rerr))
		}
		logger.Log("collection", fmt.Sprintf("attempt failed: %v", err), "kind", reason.Kind)
		transition(logger, model.AttemptFailed)

		span.SetTag("error", true)
		span.LogKV("failure", reason.Kind)

		if adv.PaybackPassed(at) && c.events != nil {
			c.events.PaybackMissed(adv, reason)
		}
	} else {
		attempt.PaymentID = &payment.ID
		transition(logger, model.AttemptSucceeded)
	}

	c.clear(cleanupCtx, logger, attempt)
	collectionAttempts.With("trigger", string(trigger), "result", result).Add(1)

	if payment != nil && c.events != nil {
		c.events.PaymentUpdated(adv, payment)
		if err == nil && payment.Status == model.PaymentCompleted {
			c.events.CollectionSucceeded(adv, payment)
		}
	}
	return attempt, err
}

// clear resolves attempt so later attempts for its advance can proceed.
func (c *Collector) clear(ctx context.Context, logger log.Logger, attempt *model.CollectionAttempt) {
	if err := ClearProcessing(ctx, c.db, attempt.ID); err != nil {
		logger.Log("collection", fmt.Sprintf("problem clearing attempt: %v", err))
		return
	}
	attempt.Processing = nil
	transition(logger, model.AttemptCleared)
}

// attempt validates, charges and records the payment. The payment is returned whenever
// one was created, even if charging failed.
func (c *Collector) attempt(ctx context.Context, logger log.Logger, attempt *model.CollectionAttempt, advanceID id.Advance, amount decimal.Decimal, chargeFn charge.Func, trigger model.Trigger) (*model.Payment, *model.Advance, error) {
	transition(logger, model.AttemptValidating)

	adv, err := advances.GetAdvance(ctx, c.db, advanceID)
	if err != nil {
		return nil, nil, fmt.Errorf("reload advance: %v", err)
	}
	if adv == nil {
		return nil, nil, ledger.ErrAdvanceNotFound
	}
	if err := c.validate(ctx, adv, amount, trigger); err != nil {
		return nil, adv, err
	}

	payment := &model.Payment{
		ID:          id.Payment(base.ID()),
		AdvanceID:   adv.ID,
		UserID:      adv.UserID,
		Amount:      amount,
		ReferenceID: uuid.New().String(),
		Status:      model.PaymentPending,
	}
	if err := advances.CreatePayment(ctx, c.db, payment); err != nil {
		return nil, adv, fmt.Errorf("create payment: %v", err)
	}

	transition(logger, model.AttemptCharging)
	resp, chargeErr := chargeFn(ctx, amount, payment)
	applyResponse(payment, resp, chargeErr)

	err = database.InTx(ctx, c.db, func(tx database.Querier) error {
		if err := advances.UpdatePayment(ctx, tx, payment); err != nil {
			return fmt.Errorf("update payment: %v", err)
		}
		if chargeErr == nil {
			if err := LinkPayment(ctx, tx, attempt.ID, payment.ID); err != nil {
				return fmt.Errorf("link payment: %v", err)
			}
		}
		updated, err := advances.Calculator(tx).ComputeOutstanding(ctx, adv.ID)
		if err != nil {
			return err
		}
		adv = updated
		return nil
	})
	if err != nil {
		logger.Log("collection", fmt.Sprintf("problem saving %v: %v", payment, err))
		if chargeErr != nil {
			return payment, adv, chargeErr
		}
		return payment, adv, err
	}
	if chargeErr != nil {
		return payment, adv, chargeErr
	}

	logger.Log("collection", fmt.Sprintf("collected %s with %v", model.FormatAmount(amount), payment), "outstanding", model.FormatAmount(adv.Outstanding))
	return payment, adv, nil
}

func (c *Collector) validate(ctx context.Context, adv *model.Advance, amount decimal.Decimal, trigger model.Trigger) error {
	successful, err := CountSuccessful(ctx, c.db, adv.ID)
	if err != nil {
		return fmt.Errorf("count successful attempts: %v", err)
	}

	activeElsewhere := false
	if c.activity != nil {
		activeElsewhere, err = c.activity.IsActiveElsewhere(ctx, adv.ID)
		if err != nil {
			return fmt.Errorf("checking activity: %v", err)
		}
	}

	var reasons []model.FailureReason
	if c.validator != nil {
		reasons = c.validator.Validate(ctx, adv, amount, successful, trigger, activeElsewhere)
	}

	payments, err := advances.ListPayments(ctx, c.db, adv.ID)
	if err != nil {
		return fmt.Errorf("list payments: %v", err)
	}
	reversals, err := advances.ListReversals(ctx, c.db, adv.ID)
	if err != nil {
		return fmt.Errorf("list reversals: %v", err)
	}
	if err := ledger.CheckPredictedOutstanding(adv, payments, reversals, amount); err != nil {
		reasons = append(reasons, model.NewFailure(model.FailureValidation, err.Error()))
	}

	if len(reasons) > 0 {
		return &model.ValidationError{Reasons: reasons}
	}
	return nil
}

// applyResponse records the processor outcome on payment. Declines move no money so
// the payment is canceled, but any other error leaves its outcome unknown.
func applyResponse(payment *model.Payment, resp *processor.Response, err error) {
	if err != nil {
		_, declined := processor.AsError(err)
		if declined || model.IsOutsideACHWindow(err) || errors.Is(err, charge.ErrNoFundingSource) ||
			errors.Is(err, processor.ErrNoCardProcessor) || errors.Is(err, processor.ErrNoACHProcessor) {
			payment.Status = model.PaymentCanceled
		} else {
			payment.Status = model.PaymentUnknown
		}
		return
	}
	if resp == nil {
		payment.Status = model.PaymentUnknown
		return
	}
	payment.Status = resp.Status
	if payment.Status == "" {
		payment.Status = model.PaymentUnknown
	}
	payment.ExternalID = resp.ExternalID
	payment.ExternalProcessor = resp.Processor
	payment.BankAccountID = resp.BankAccountID
	payment.PaymentMethodID = resp.PaymentMethodID
}

func transition(logger log.Logger, state model.AttemptState) {
	logger.Log("collection", "attempt state", "state", state)
}
