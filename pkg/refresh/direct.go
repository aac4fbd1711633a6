// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package refresh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/moov-io/collections/pkg/advances"
	"github.com/moov-io/collections/pkg/charge"
	"github.com/moov-io/collections/pkg/collection"
	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/funding"
	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/ledger"
	"github.com/moov-io/collections/pkg/model"
	"github.com/moov-io/collections/pkg/schedule"
	"github.com/moov-io/collections/pkg/util"

	"github.com/go-kit/kit/log"
	"github.com/shopspring/decimal"
)

type BalanceSource interface {
	RefreshBalance(ctx context.Context, acct *model.BankAccount, req funding.RefreshRequest) (model.Balances, error)
}

// Builder returns how a funding source is charged. *charge.Selector implements it.
type Builder interface {
	Build(adv *model.Advance, card *model.PaymentMethod, account *model.BankAccount) (charge.Func, error)
}

// Attempter runs one guarded collection attempt. *collection.Collector implements it.
type Attempter interface {
	Collect(ctx context.Context, adv *model.Advance, amount decimal.Decimal, chargeFn charge.Func, trigger model.Trigger, at time.Time) (*model.CollectionAttempt, error)
}

type Scheduler interface {
	ScheduleACHCollection(ctx context.Context, advanceIDs []id.Advance, startAt time.Time) ([]id.Task, error)
}

// DirectCollector walks the advance's funding sources in order and charges each one
// through the collection attempt orchestrator.
type DirectCollector struct {
	db     *sql.DB
	logger log.Logger

	balances  BalanceSource
	builder   Builder
	attempter Attempter
	scheduler Scheduler
	windows   *schedule.Windows

	threshold      decimal.Decimal
	refreshTimeout time.Duration

	now func() time.Time
}

func NewDirectCollector(logger log.Logger, db *sql.DB, cfg config.Collection, balances BalanceSource, builder Builder, attempter Attempter, scheduler Scheduler, windows *schedule.Windows) (*DirectCollector, error) {
	threshold, err := cfg.Threshold()
	if err != nil {
		return nil, fmt.Errorf("minimum balance threshold: %v", err)
	}
	timeout := cfg.RefreshTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DirectCollector{
		db:             db,
		logger:         logger,
		balances:       balances,
		builder:        builder,
		attempter:      attempter,
		scheduler:      scheduler,
		windows:        windows,
		threshold:      threshold,
		refreshTimeout: timeout,
		now:            time.Now,
	}, nil
}

func (d *DirectCollector) Name() string {
	return "direct"
}

func (d *DirectCollector) Collect(ctx context.Context, adv *model.Advance, opts Options) (*Result, error) {
	adv, err := d.reload(ctx, adv.ID)
	if err != nil {
		return nil, err
	}
	if !adv.Outstanding.IsPositive() {
		return &Result{Status: StatusSuccess}, nil
	}

	sources, err := funding.Sources(ctx, d.db, adv)
	if err != nil {
		return nil, fmt.Errorf("funding sources: %v", err)
	}

	var (
		payments      []*model.Payment
		outsideWindow bool
		lastErr       error
	)
	for i := range sources {
		if !adv.Outstanding.IsPositive() {
			break
		}
		source := sources[i]
		logger := log.With(d.logger, "advanceID", adv.ID, "bankAccountID", source.Account.ID)

		balances, err := d.refresh(ctx, adv, source.Account, opts)
		if err != nil {
			if model.IsRefreshTimeout(err) {
				logger.Log("refresh", "refresh-timeout", "error", err)
			} else {
				logger.Log("refresh", "refresh-failed", "error", err)
			}
			lastErr = err
			continue
		}

		amount := ledger.RetrievalAmount(adv.Outstanding, balances, ledger.RetrievalOptions{
			MinThreshold:            d.threshold,
			RetrieveFullOutstanding: opts.RetrieveFullOutstanding,
		})
		if amount == nil {
			logger.Log("refresh", "balance-too-low")
			continue
		}
		if amount.IsZero() {
			logger.Log("refresh", "below-rounding-floor")
			continue
		}

		chargeFn, err := d.builder.Build(adv, source.Card, source.Account)
		if err != nil {
			logger.Log("refresh", fmt.Sprintf("unable to charge source: %v", err))
			lastErr = err
			continue
		}

		attempt, err := d.attempter.Collect(ctx, adv, *amount, chargeFn, opts.Trigger, d.now())
		if errors.Is(err, collection.ErrConflict) {
			return &Result{Status: StatusFailure, Payments: payments, Err: err}, nil
		}
		if attempt != nil {
			// money may have moved even when the attempt failed
			if updated, rerr := d.reload(ctx, adv.ID); rerr == nil {
				adv = updated
			} else {
				logger.Log("refresh", fmt.Sprintf("problem reloading advance: %v", rerr))
			}
		}
		if err != nil {
			if model.IsOutsideACHWindow(err) {
				outsideWindow = true
			}
			logger.Log("refresh", fmt.Sprintf("collection attempt failed: %v", err))
			lastErr = err
			continue
		}

		if attempt.PaymentID != nil {
			payment, err := advances.GetPayment(ctx, d.db, *attempt.PaymentID)
			if err != nil {
				return nil, fmt.Errorf("get payment: %v", err)
			}
			if payment != nil {
				payments = append(payments, payment)
			}
		}
	}

	switch {
	case len(payments) == 0 && !outsideWindow:
		if lastErr != nil {
			d.logger.Log("refresh", fmt.Sprintf("last source error: %v", lastErr), "advanceID", adv.ID)
		}
		return &Result{Status: StatusFailure, Err: ErrAllSourcesFailed}, nil

	case adv.Outstanding.IsPositive() && outsideWindow:
		at := d.windows.NextCollectionTime(d.now())
		if _, err := d.scheduler.ScheduleACHCollection(ctx, []id.Advance{adv.ID}, at); err != nil {
			return nil, fmt.Errorf("scheduling deferred collection: %v", err)
		}
		d.logger.Log("refresh", fmt.Sprintf("deferred collection of %s until %v", model.FormatAmount(adv.Outstanding), at), "advanceID", adv.ID)
		return &Result{Status: StatusPending, Payments: payments, DeferredUntil: &at}, nil
	}
	return &Result{Status: StatusSuccess, Payments: payments}, nil
}

func (d *DirectCollector) reload(ctx context.Context, advanceID id.Advance) (*model.Advance, error) {
	adv, err := advances.GetAdvance(ctx, d.db, advanceID)
	if err != nil {
		return nil, fmt.Errorf("reload advance: %v", err)
	}
	if adv == nil {
		return nil, ledger.ErrAdvanceNotFound
	}
	return adv, nil
}

// refresh fetches live balances of acct and saves them. Exceeding the timeout is returned
// as a *model.RefreshTimeoutError.
func (d *DirectCollector) refresh(ctx context.Context, adv *model.Advance, acct *model.BankAccount, opts Options) (model.Balances, error) {
	timeout := opts.RefreshTimeout
	if timeout <= 0 {
		timeout = d.refreshTimeout
	}
	var balances model.Balances
	err := util.Timeout(ctx, timeout, func(ctx context.Context) error {
		bal, err := d.balances.RefreshBalance(ctx, acct, funding.RefreshRequest{
			Reason:    "collection",
			AdvanceID: adv.ID,
			Caller:    opts.Caller,
		})
		balances = bal
		return err
	})
	if err != nil {
		if errors.Is(err, util.ErrTimeout) {
			return model.Balances{}, &model.RefreshTimeoutError{BankAccountID: acct.ID.String(), Timeout: timeout}
		}
		return model.Balances{}, err
	}
	if err := funding.UpdateBalances(ctx, d.db, acct.ID, balances, d.now()); err != nil {
		return model.Balances{}, fmt.Errorf("saving balances: %v", err)
	}
	return balances, nil
}
