// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package advances

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/moov-io/collections/pkg/database"
	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/ledger"
	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
)

// Repository reads and writes advances along with their payments and reversals.
// It satisfies ledger.Store so it can back a ledger.Calculator inside or outside
// of a transaction.
type Repository struct {
	q database.Querier
}

func NewRepo(q database.Querier) *Repository {
	return &Repository{q: q}
}

// Calculator returns a ledger.Calculator which reads and writes through q.
func Calculator(q database.Querier) *ledger.Calculator {
	return ledger.NewCalculator(NewRepo(q))
}

func (r *Repository) GetAdvance(ctx context.Context, advanceID id.Advance) (*model.Advance, error) {
	return GetAdvance(ctx, r.q, advanceID)
}

func (r *Repository) ListPayments(ctx context.Context, advanceID id.Advance) ([]*model.Payment, error) {
	return ListPayments(ctx, r.q, advanceID)
}

func (r *Repository) ListReversals(ctx context.Context, advanceID id.Advance) ([]*model.Reversal, error) {
	return ListReversals(ctx, r.q, advanceID)
}

func (r *Repository) UpdateOutstanding(ctx context.Context, advanceID id.Advance, outstanding decimal.Decimal) error {
	return UpdateOutstanding(ctx, r.q, advanceID, outstanding)
}

func CreateAdvance(ctx context.Context, q database.Querier, adv *model.Advance) error {
	if adv == nil {
		return errors.New("nil Advance")
	}
	query := `insert into advances (advance_id, user_id, amount, fee, tip_amount, outstanding, payback_date, disbursement_status, disbursement_method, bank_account_id, payment_method_id, created_at, last_updated_at) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	if adv.Created.IsZero() {
		adv.Created = now
	}
	adv.Updated = now

	_, err = stmt.ExecContext(ctx,
		adv.ID,
		adv.UserID,
		adv.Amount,
		adv.Fee,
		adv.TipAmount,
		adv.Outstanding,
		adv.PaybackDate.UTC(),
		adv.DisbursementStatus,
		adv.DisbursementMethod,
		adv.BankAccountID,
		nullPaymentMethod(adv.PaymentMethodID),
		adv.Created.UTC(),
		adv.Updated,
	)
	return err
}

func GetAdvance(ctx context.Context, q database.Querier, advanceID id.Advance) (*model.Advance, error) {
	query := `select advance_id, user_id, amount, fee, tip_amount, outstanding, payback_date, disbursement_status, disbursement_method, bank_account_id, payment_method_id, created_at, last_updated_at
from advances where advance_id = ? limit 1;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	adv := &model.Advance{}
	var paymentMethodID sql.NullString
	err = stmt.QueryRowContext(ctx, advanceID).Scan(
		&adv.ID,
		&adv.UserID,
		&adv.Amount,
		&adv.Fee,
		&adv.TipAmount,
		&adv.Outstanding,
		&adv.PaybackDate,
		&adv.DisbursementStatus,
		&adv.DisbursementMethod,
		&adv.BankAccountID,
		&paymentMethodID,
		&adv.Created,
		&adv.Updated,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if paymentMethodID.Valid {
		pmID := id.PaymentMethod(paymentMethodID.String)
		adv.PaymentMethodID = &pmID
	}
	return adv, nil
}

func UpdateOutstanding(ctx context.Context, q database.Querier, advanceID id.Advance, outstanding decimal.Decimal) error {
	query := `update advances set outstanding = ?, last_updated_at = ? where advance_id = ?;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, outstanding, time.Now().UTC(), advanceID)
	return err
}

// ListDueAdvances returns disbursed advances with an outstanding balance whose
// payback date is on or before asOf, oldest payback first.
func ListDueAdvances(ctx context.Context, q database.Querier, asOf time.Time, limit int) ([]id.Advance, error) {
	query := `select advance_id, outstanding from advances
where disbursement_status = ? and payback_date <= ?
order by payback_date asc;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, model.DisbursementCompleted, asOf.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []id.Advance
	for rows.Next() {
		var advanceID id.Advance
		var outstanding decimal.Decimal
		if err := rows.Scan(&advanceID, &outstanding); err != nil {
			return nil, err
		}
		// outstanding is stored as text so filter here rather than in sql
		if !outstanding.IsPositive() {
			continue
		}
		out = append(out, advanceID)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

// AddExperiment flags an advance as enrolled in experiment.
func AddExperiment(ctx context.Context, q database.Querier, advanceID id.Advance, experiment string) error {
	query := `insert into advance_experiments (advance_id, experiment, created_at) values (?, ?, ?);`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, advanceID, experiment, time.Now().UTC())
	if database.UniqueViolation(err) {
		return nil
	}
	return err
}

func InExperiment(ctx context.Context, q database.Querier, advanceID id.Advance, experiment string) (bool, error) {
	query := `select count(*) from advance_experiments where advance_id = ? and experiment = ?;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	var n int
	if err := stmt.QueryRowContext(ctx, advanceID, experiment).Scan(&n); err != nil {
		return false, fmt.Errorf("experiment lookup: %v", err)
	}
	return n > 0, nil
}

func nullPaymentMethod(v *id.PaymentMethod) sql.NullString {
	if v == nil || *v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}

func nullBankAccount(v *id.BankAccount) sql.NullString {
	if v == nil || *v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}
