// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package sweep

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/moov-io/collections/pkg/advances"
	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/ledger"
	"github.com/moov-io/collections/pkg/model"
	"github.com/moov-io/collections/pkg/refresh"
	"github.com/moov-io/collections/pkg/tasks"

	"github.com/go-kit/kit/log"
)

const deferredCaller = "deferred-ach"

// Runner collects deferred ACH collections once they're due.
type Runner struct {
	db     *sql.DB
	logger log.Logger

	refresher Refresher

	interval   time.Duration
	limit      int
	staleAfter time.Duration

	now func() time.Time
}

func NewRunner(logger log.Logger, db *sql.DB, cfg config.Deferred, refresher Refresher) *Runner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 100
	}
	return &Runner{
		db:         db,
		logger:     logger,
		refresher:  refresher,
		interval:   interval,
		limit:      limit,
		staleAfter: cfg.StaleAfter,
		now:        time.Now,
	}
}

// Start runs due tasks every interval until ctx is done.
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := r.RunOnce(ctx); err != nil {
				r.logger.Log("deferred", fmt.Sprintf("problem running deferred collections: %v", err))
			} else if n > 0 {
				r.logger.Log("deferred", fmt.Sprintf("ran %d deferred collections", n))
			}

		case <-ctx.Done():
			return
		}
	}
}

// RunOnce claims every due task and collects its advance, returning how many ran.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	claimed, err := tasks.ClaimDue(ctx, r.db, r.now(), r.staleAfter, r.limit)
	if err != nil {
		return 0, fmt.Errorf("claiming tasks: %v", err)
	}
	for i := range claimed {
		task := claimed[i]
		runErr := r.run(ctx, task)
		if runErr != nil {
			r.logger.Log("deferred", fmt.Sprintf("task failed: %v", runErr), "taskID", task.ID, "advanceID", task.AdvanceID)
		}
		if err := tasks.Complete(ctx, r.db, task, runErr); err != nil {
			return i, fmt.Errorf("completing task %s: %v", task.ID, err)
		}
	}
	return len(claimed), nil
}

func (r *Runner) run(ctx context.Context, task *tasks.Task) error {
	adv, err := advances.GetAdvance(ctx, r.db, task.AdvanceID)
	if err != nil {
		return err
	}
	if adv == nil {
		return ledger.ErrAdvanceNotFound
	}
	result, err := r.refresher.RefreshAndCollect(ctx, adv, refresh.Options{
		Caller:         deferredCaller,
		Trigger:        model.TriggerScheduledACH,
		IdempotencyKey: fmt.Sprintf("%s:%d", task.ID, task.Attempts),
	})
	if err != nil {
		return err
	}
	if result.Status == refresh.StatusFailure {
		if result.Err != nil {
			return result.Err
		}
		return errors.New("deferred collection failed")
	}
	return nil
}
