// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package collection

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/moov-io/collections/pkg/database"
	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"
)

// ErrConflict is returned when another attempt is already processing for the advance.
var ErrConflict = errors.New("collection attempt already in progress")

const attemptColumns = `attempt_id, advance_id, amount, trigger_name, processing, payment_id, failure, created_at, last_updated_at`

// CreateAttempt inserts attempt. Only one processing attempt may exist per advance,
// which the unique index on (advance_id, processing) enforces.
func CreateAttempt(ctx context.Context, q database.Querier, attempt *model.CollectionAttempt) error {
	if attempt == nil {
		return errors.New("nil CollectionAttempt")
	}
	query := `insert into collection_attempts (` + attemptColumns + `) values (?, ?, ?, ?, ?, ?, ?, ?, ?);`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if attempt.Created.IsZero() {
		attempt.Created = time.Now()
	}
	attempt.Created = attempt.Created.UTC()
	attempt.Updated = attempt.Created

	var paymentID *string
	if attempt.PaymentID != nil {
		s := attempt.PaymentID.String()
		paymentID = &s
	}
	_, err = stmt.ExecContext(ctx,
		attempt.ID,
		attempt.AdvanceID,
		attempt.Amount,
		attempt.Trigger,
		nullProcessing(attempt.Processing),
		paymentID,
		attempt.Failure,
		attempt.Created,
		attempt.Updated,
	)
	if database.UniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func GetAttempt(ctx context.Context, q database.Querier, attemptID id.Attempt) (*model.CollectionAttempt, error) {
	query := `select ` + attemptColumns + ` from collection_attempts where attempt_id = ? limit 1;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	attempt, err := scanAttempt(stmt.QueryRowContext(ctx, attemptID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return attempt, err
}

// ListAttempts returns every attempt against advanceID, oldest first.
func ListAttempts(ctx context.Context, q database.Querier, advanceID id.Advance) ([]*model.CollectionAttempt, error) {
	query := `select ` + attemptColumns + ` from collection_attempts where advance_id = ? order by created_at asc;`
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

	var out []*model.CollectionAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, attempt)
	}
	return out, rows.Err()
}

// ClearStale resolves processing attempts on advanceID created before olderThan.
// They're left behind when a process dies mid-attempt.
func ClearStale(ctx context.Context, q database.Querier, advanceID id.Advance, olderThan time.Time) (int64, error) {
	query := `update collection_attempts set processing = null, failure = ?, last_updated_at = ?
where advance_id = ? and processing = ? and created_at < ?;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	failure := model.NewFailure(model.FailureUnexpected, "stale collection attempt")
	res, err := stmt.ExecContext(ctx, &failure, time.Now().UTC(), advanceID, true, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearProcessing marks attemptID as resolved.
func ClearProcessing(ctx context.Context, q database.Querier, attemptID id.Attempt) error {
	query := `update collection_attempts set processing = null, last_updated_at = ? where attempt_id = ?;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, time.Now().UTC(), attemptID)
	return err
}

// CountSuccessful returns how many attempts against advanceID resolved with a payment.
func CountSuccessful(ctx context.Context, q database.Querier, advanceID id.Advance) (int, error) {
	query := `select count(*) from collection_attempts where advance_id = ? and payment_id is not null and failure is null;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var n int
	if err := stmt.QueryRowContext(ctx, advanceID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func RecordFailure(ctx context.Context, q database.Querier, attemptID id.Attempt, reason model.FailureReason) error {
	query := `update collection_attempts set failure = ?, last_updated_at = ? where attempt_id = ?;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, &reason, time.Now().UTC(), attemptID)
	return err
}

// LinkPayment ties the payment created by an attempt back to it.
func LinkPayment(ctx context.Context, q database.Querier, attemptID id.Attempt, paymentID id.Payment) error {
	query := `update collection_attempts set payment_id = ?, last_updated_at = ? where attempt_id = ?;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, paymentID, time.Now().UTC(), attemptID)
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row scanner) (*model.CollectionAttempt, error) {
	attempt := &model.CollectionAttempt{}
	var (
		processing sql.NullBool
		paymentID  sql.NullString
		failure    sql.NullString
	)
	err := row.Scan(
		&attempt.ID,
		&attempt.AdvanceID,
		&attempt.Amount,
		&attempt.Trigger,
		&processing,
		&paymentID,
		&failure,
		&attempt.Created,
		&attempt.Updated,
	)
	if err != nil {
		return nil, err
	}
	if processing.Valid && processing.Bool {
		attempt.Processing = &processing.Bool
	}
	if paymentID.Valid {
		pID := id.Payment(paymentID.String)
		attempt.PaymentID = &pID
	}
	if failure.Valid && failure.String != "" {
		var reason model.FailureReason
		if err := reason.Scan(failure.String); err != nil {
			return nil, err
		}
		attempt.Failure = &reason
	}
	return attempt, nil
}

// nullProcessing stores resolved attempts as NULL so they fall outside the unique index.
func nullProcessing(p *bool) sql.NullBool {
	if p == nil || !*p {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: true, Valid: true}
}
