// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package refresh collects an advance across every funding source of its user,
// refreshing each source's balance before deciding how much to pull from it.
package refresh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/moov-io/collections/pkg/advances"
	"github.com/moov-io/collections/pkg/audit"
	"github.com/moov-io/collections/pkg/idempotent"
	"github.com/moov-io/collections/pkg/model"
	"github.com/moov-io/collections/pkg/taskengine"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/opentracing/opentracing-go"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	refreshResults = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "refresh_collection_results",
		Help: "Counter of multi-source collection runs by strategy and status",
	}, []string{"strategy", "status"})

	duplicateTriggers = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "refresh_duplicate_triggers",
		Help: "Counter of collection runs skipped because their idempotency key was seen",
	}, []string{"trigger"})
)

const auditEventType = "refresh-and-collect"

// ErrAllSourcesFailed is returned when no funding source could be collected from.
var ErrAllSourcesFailed = errors.New("failed to collect from all sources")

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusPending Status = "PENDING"
)

type Options struct {
	// RetrieveFullOutstanding only collects from a source able to cover everything owed.
	RetrieveFullOutstanding bool

	// RefreshTimeout bounds each balance refresh. Zero uses the configured default.
	RefreshTimeout time.Duration

	// Caller tags the audit log of the run.
	Caller  string
	Trigger model.Trigger

	// IdempotencyKey dedupes triggers such as webhook deliveries. Optional.
	IdempotencyKey string
}

type Result struct {
	Status   Status
	Payments []*model.Payment
	Err      error

	// DeferredUntil is set when the remaining outstanding was scheduled for a later ACH window.
	DeferredUntil *time.Time
}

// Strategy collects one advance.
type Strategy interface {
	Name() string
	Collect(ctx context.Context, adv *model.Advance, opts Options) (*Result, error)
}

type Collector struct {
	db     *sql.DB
	logger log.Logger

	direct    Strategy
	delegated Strategy

	recorder idempotent.Recorder
	audit    audit.Writer
}

// NewCollector returns a Collector running direct unless an advance is enrolled in the
// task engine experiment, in which case delegated is used. Either of delegated or
// recorder can be nil.
func NewCollector(logger log.Logger, db *sql.DB, direct Strategy, delegated Strategy, recorder idempotent.Recorder, auditor audit.Writer) *Collector {
	if auditor == nil {
		auditor = audit.NewWriter(db)
	}
	return &Collector{
		db:        db,
		logger:    logger,
		direct:    direct,
		delegated: delegated,
		recorder:  recorder,
		audit:     auditor,
	}
}

// RefreshAndCollect collects as much of the advance's outstanding balance as its funding
// sources allow. Every call writes one audit entry with the outcome.
func (c *Collector) RefreshAndCollect(ctx context.Context, adv *model.Advance, opts Options) (*Result, error) {
	if adv == nil {
		return nil, errors.New("nil Advance")
	}
	if opts.Trigger == "" {
		opts.Trigger = model.TriggerBalanceRefresh
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "refresh-and-collect")
	defer span.Finish()
	span.SetTag("advanceID", adv.ID.String())
	span.SetTag("caller", opts.Caller)

	logger := log.With(c.logger, "advanceID", adv.ID, "caller", opts.Caller, "trigger", opts.Trigger)

	if seen := c.seenBefore(ctx, logger, adv, opts); seen {
		duplicateTriggers.With("trigger", string(opts.Trigger)).Add(1)
		result := &Result{Status: StatusPending}
		c.record(ctx, logger, adv, opts, "duplicate", result, nil)
		return result, nil
	}

	strategy, err := c.strategy(ctx, adv)
	if err != nil {
		c.record(ctx, logger, adv, opts, "unknown", nil, err)
		return nil, err
	}
	if strategy == nil {
		logger.Log("refresh", "advance is collected by the task engine")
		result := &Result{Status: StatusPending}
		c.record(ctx, logger, adv, opts, "skipped", result, nil)
		return result, nil
	}
	span.SetTag("strategy", strategy.Name())

	result, err := strategy.Collect(ctx, adv, opts)
	if err != nil {
		span.SetTag("error", true)
	}
	c.record(ctx, logger, adv, opts, strategy.Name(), result, err)
	return result, err
}

func (c *Collector) seenBefore(ctx context.Context, logger log.Logger, adv *model.Advance, opts Options) bool {
	if c.recorder == nil || opts.IdempotencyKey == "" {
		return false
	}
	key, err := idempotent.Key(string(opts.Trigger), adv.ID.String(), opts.IdempotencyKey)
	if err != nil {
		return false
	}
	seen, err := c.recorder.SeenBefore(ctx, key)
	if err != nil {
		logger.Log("refresh", fmt.Sprintf("problem checking idempotency key: %v", err))
		return false
	}
	if seen {
		logger.Log("refresh", "skipping duplicate trigger", "idempotencyKey", opts.IdempotencyKey)
	}
	return seen
}

// strategy returns nil when the advance belongs to the task engine but no delegated
// strategy is configured.
func (c *Collector) strategy(ctx context.Context, adv *model.Advance) (Strategy, error) {
	delegated, err := advances.InExperiment(ctx, c.db, adv.ID, taskengine.Experiment)
	if err != nil {
		return nil, fmt.Errorf("checking experiments: %v", err)
	}
	if !delegated {
		return c.direct, nil
	}
	return c.delegated, nil
}

func (c *Collector) record(ctx context.Context, logger log.Logger, adv *model.Advance, opts Options, strategy string, result *Result, err error) {
	entry := &audit.Entry{
		AdvanceID: adv.ID,
		Caller:    opts.Caller,
		EventType: auditEventType,
		Extra: map[string]interface{}{
			"strategy": strategy,
			"trigger":  string(opts.Trigger),
		},
	}
	switch {
	case err != nil:
		entry.Status = audit.StatusFailure
		entry.Message = err.Error()

	case result != nil:
		entry.Status = audit.Status(result.Status)
		if result.Err != nil {
			entry.Message = result.Err.Error()
		}
		if len(result.Payments) > 0 {
			var ids []string
			for i := range result.Payments {
				ids = append(ids, result.Payments[i].ID.String())
			}
			entry.Extra["paymentIDs"] = ids
		}
		if result.DeferredUntil != nil {
			entry.Extra["deferredUntil"] = result.DeferredUntil.Format(time.RFC3339)
		}
	}
	refreshResults.With("strategy", strategy, "status", string(entry.Status)).Add(1)

	if werr := c.audit.Write(ctx, entry); werr != nil {
		logger.Log("refresh", fmt.Sprintf("problem writing audit log: %v", werr))
	}
	logger.Log("refresh", "finished", "status", entry.Status, "strategy", strategy, "message", entry.Message)
}
