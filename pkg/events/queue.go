// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moov-io/collections/pkg/config"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	jobsDropped = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "events_queue_jobs_dropped",
		Help: "Counter of background jobs dropped because the queue was full",
	}, []string{"job"})

	jobsFailed = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "events_queue_jobs_failed",
		Help: "Counter of background jobs which failed after every retry",
	}, []string{"job"})
)

var ErrQueueClosed = errors.New("events queue is closed")

// Job is one unit of background work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue runs jobs on a fixed set of workers. Jobs are retried with exponential backoff
// and dropped when the queue is full.
type Queue struct {
	cfg    config.Queue
	logger log.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(logger log.Logger, cfg config.Queue) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		cfg:    cfg,
		logger: logger,
		jobs:   make(chan Job, cfg.Capacity),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// Enqueue hands job to a worker without blocking. It returns false if job was dropped.
func (q *Queue) Enqueue(job Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Log("events", fmt.Sprintf("dropping %s: %v", job.Name, ErrQueueClosed))
		jobsDropped.With("job", job.Name).Add(1)
		return false
	}
	select {
	case q.jobs <- job:
		return true
	default:
		q.logger.Log("events", fmt.Sprintf("dropping %s: queue is full", job.Name))
		jobsDropped.With("job", job.Name).Add(1)
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued jobs to finish until ctx is done,
// after which in-flight retries are abandoned.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.run(job)
	}
}

func (q *Queue) run(job Job) {
	var err error
	backoff := q.cfg.Backoff
retry:
	for attempt := 0; ; attempt++ {
		if err = job.Run(q.ctx); err == nil {
			return
		}
		if attempt >= q.cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-q.ctx.Done():
			break retry
		}
	}
	jobsFailed.With("job", job.Name).Add(1)
	q.logger.Log("events", fmt.Sprintf("%s failed: %v", job.Name, err))
}
