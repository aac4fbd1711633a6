// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package sweep drives collections in bulk: every advance past its payback date on each
// cutoff tick, and deferred ACH collections once they're due.
package sweep

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/moov-io/collections/pkg/advances"
	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"
	"github.com/moov-io/collections/pkg/refresh"
	"github.com/moov-io/collections/pkg/util"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/hashicorp/go-multierror"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	sweptAdvances = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "sweep_advances",
		Help: "Counter of advances collected by the due advance sweep",
	}, []string{"status"})
)

const sweepCaller = "daily-sweep"

// Refresher is satisfied by *refresh.Collector.
type Refresher interface {
	RefreshAndCollect(ctx context.Context, adv *model.Advance, opts refresh.Options) (*refresh.Result, error)
}

// Sweeper collects every advance which is due.
type Sweeper struct {
	db     *sql.DB
	logger log.Logger

	refresher Refresher

	batchSize int64
	location  *time.Location
	limiter   *rate.Limiter
}

func NewSweeper(logger log.Logger, db *sql.DB, cfg config.Sweep, refresher Refresher) (*Sweeper, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("sweep: %v", err)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 25
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Sweeper{
		db:        db,
		logger:    logger,
		refresher: refresher,
		batchSize: int64(batch),
		location:  loc,
		limiter:   rate.NewLimiter(limit, batch),
	}, nil
}

// Run sweeps on every tick until ctx is done or ticks is closed.
func (s *Sweeper) Run(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case now, ok := <-ticks:
			if !ok {
				return
			}
			if err := s.Sweep(ctx, now); err != nil {
				s.logger.Log("sweep", fmt.Sprintf("problem sweeping advances: %v", err))
			}

		case <-ctx.Done():
			return
		}
	}
}

// Sweep collects every advance whose payback date is on or before the day of now. At most
// one batch of advances is collected at a time. Errors of individual advances are combined
// in the returned error after every advance was tried.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) error {
	endOfDay := util.StartOfDay(now, s.location).AddDate(0, 0, 1).Add(-time.Nanosecond)

	advanceIDs, err := advances.ListDueAdvances(ctx, s.db, endOfDay, 0)
	if err != nil {
		return fmt.Errorf("listing due advances: %v", err)
	}
	s.logger.Log("sweep", fmt.Sprintf("found %d due advances", len(advanceIDs)))

	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	sem := semaphore.NewWeighted(s.batchSize)
	g, ctx := errgroup.WithContext(ctx)

	for i := range advanceIDs {
		advanceID := advanceIDs[i]
		err := s.limiter.Wait(ctx)
		if err == nil {
			err = sem.Acquire(ctx, 1)
		}
		if err != nil {
			mu.Lock()
			errs = multierror.Append(errs, err)
			mu.Unlock()
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			if err := s.collect(ctx, advanceID); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("advance=%s: %v", advanceID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = multierror.Append(errs, err)
	}

	mu.Lock()
	defer mu.Unlock()
	return errs.ErrorOrNil()
}

func (s *Sweeper) collect(ctx context.Context, advanceID id.Advance) error {
	adv, err := advances.GetAdvance(ctx, s.db, advanceID)
	if err != nil {
		return err
	}
	if adv == nil {
		return nil
	}
	result, err := s.refresher.RefreshAndCollect(ctx, adv, refresh.Options{
		Caller:  sweepCaller,
		Trigger: model.TriggerDailyCron,
	})
	if err != nil {
		sweptAdvances.With("status", "error").Add(1)
		return err
	}
	sweptAdvances.With("status", string(result.Status)).Add(1)
	return nil
}
