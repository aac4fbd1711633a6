// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package tasks stores collections deferred until the next ACH window.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/moov-io/base"
	"github.com/moov-io/collections/pkg/database"
	"github.com/moov-io/collections/pkg/id"

	"github.com/go-kit/kit/log"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
)

// Task is one deferred collection of an advance, due at StartAt.
type Task struct {
	ID        id.Task
	AdvanceID id.Advance
	StartAt   time.Time

	Status    Status
	Attempts  int
	LastError string

	Created time.Time
	Updated time.Time
}

// Scheduler writes deferred collections into the database for a Runner to pick up.
type Scheduler struct {
	db     *sql.DB
	logger log.Logger
}

func NewScheduler(logger log.Logger, db *sql.DB) *Scheduler {
	return &Scheduler{db: db, logger: logger}
}

// ScheduleACHCollection defers collection of each advance until startAt. Advances with
// a pending task keep their existing one.
func (s *Scheduler) ScheduleACHCollection(ctx context.Context, advanceIDs []id.Advance, startAt time.Time) ([]id.Task, error) {
	var out []id.Task
	err := database.InTx(ctx, s.db, func(tx database.Querier) error {
		for i := range advanceIDs {
			pending, err := pendingTask(ctx, tx, advanceIDs[i])
			if err != nil {
				return err
			}
			if pending != nil {
				out = append(out, pending.ID)
				continue
			}
			task := &Task{
				ID:        id.Task(base.ID()),
				AdvanceID: advanceIDs[i],
				StartAt:   startAt,
				Status:    StatusPending,
			}
			if err := createTask(ctx, tx, task); err != nil {
				return fmt.Errorf("advance=%s: %v", advanceIDs[i], err)
			}
			out = append(out, task.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Log("tasks", fmt.Sprintf("scheduled %d deferred collections", len(out)), "startAt", startAt.Format(time.RFC3339))
	return out, nil
}

func createTask(ctx context.Context, q database.Querier, task *Task) error {
	query := `insert into scheduled_collections (task_id, advance_id, start_at, status, attempts, last_error, created_at, last_updated_at) values (?, ?, ?, ?, ?, ?, ?, ?);`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	task.Created, task.Updated = now, now
	task.StartAt = task.StartAt.UTC()

	_, err = stmt.ExecContext(ctx, task.ID, task.AdvanceID, task.StartAt, task.Status, task.Attempts, task.LastError, task.Created, task.Updated)
	return err
}

func pendingTask(ctx context.Context, q database.Querier, advanceID id.Advance) (*Task, error) {
	query := `select ` + taskColumns + ` from scheduled_collections where advance_id = ? and status = ? limit 1;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	task, err := scanTask(stmt.QueryRowContext(ctx, advanceID, StatusPending))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

const taskColumns = `task_id, advance_id, start_at, status, attempts, last_error, created_at, last_updated_at`

// ClaimDue marks up to limit tasks as running and returns them. Pending tasks due by now
// are claimed, as are running tasks not updated within staleAfter since their runner
// is assumed dead. A zero staleAfter never reclaims running tasks.
func ClaimDue(ctx context.Context, db *sql.DB, now time.Time, staleAfter time.Duration, limit int) ([]*Task, error) {
	var staleCutoff time.Time
	if staleAfter > 0 {
		staleCutoff = now.Add(-staleAfter)
	}

	var out []*Task
	err := database.InTx(ctx, db, func(tx database.Querier) error {
		query := `select ` + taskColumns + ` from scheduled_collections
where (status = ? and start_at <= ?) or (status = ? and last_updated_at <= ?)
order by start_at asc limit ?;`
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		rows, err := stmt.QueryContext(ctx, StatusPending, now.UTC(), StatusRunning, staleCutoff.UTC(), limit)
		if err != nil {
			return err
		}
		for rows.Next() {
			task, err := scanTask(rows)
			if err != nil {
				rows.Close()
				return err
			}
			out = append(out, task)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for i := range out {
			out[i].Status = StatusRunning
			out[i].Attempts++
			if err := updateTask(ctx, tx, out[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// Complete records the outcome of a claimed task.
func Complete(ctx context.Context, q database.Querier, task *Task, runErr error) error {
	if task == nil {
		return errors.New("nil Task")
	}
	task.Status = StatusDone
	task.LastError = ""
	if runErr != nil {
		task.Status = StatusFailed
		task.LastError = runErr.Error()
	}
	return updateTask(ctx, q, task)
}

func updateTask(ctx context.Context, q database.Querier, task *Task) error {
	query := `update scheduled_collections set status = ?, attempts = ?, last_error = ?, last_updated_at = ? where task_id = ?;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	task.Updated = time.Now().UTC()
	_, err = stmt.ExecContext(ctx, task.Status, task.Attempts, task.LastError, task.Updated, task.ID)
	return err
}

func ListTasks(ctx context.Context, q database.Querier, advanceID id.Advance) ([]*Task, error) {
	query := `select ` + taskColumns + ` from scheduled_collections where advance_id = ? order by created_at asc;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, advanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (*Task, error) {
	task := &Task{}
	var lastError sql.NullString
	err := row.Scan(&task.ID, &task.AdvanceID, &task.StartAt, &task.Status, &task.Attempts, &lastError, &task.Created, &task.Updated)
	if err != nil {
		return nil, err
	}
	task.LastError = lastError.String
	return task, nil
}
