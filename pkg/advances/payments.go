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
	"github.com/moov-io/collections/pkg/model"
)

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInvalidTransition = errors.New("invalid payment status transition")
)

const paymentColumns = `payment_id, advance_id, user_id, amount, reference_id, status, external_id, external_processor, bank_account_id, payment_method_id, created_at, last_updated_at`

// CreatePayment inserts a payment, typically as PENDING before the processor is called.
func CreatePayment(ctx context.Context, q database.Querier, p *model.Payment) error {
	if p == nil {
		return errors.New("nil Payment")
	}
	query := `insert into payments (` + paymentColumns + `) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	p.Created, p.Updated = now, now

	_, err = stmt.ExecContext(ctx,
		p.ID,
		p.AdvanceID,
		p.UserID,
		p.Amount,
		p.ReferenceID,
		p.Status,
		p.ExternalID,
		p.ExternalProcessor,
		nullBankAccount(p.BankAccountID),
		nullPaymentMethod(p.PaymentMethodID),
		p.Created,
		p.Updated,
	)
	return err
}

// UpdatePayment writes the processor outcome of a payment: its external id,
// status, processor and the funding source which was charged.
func UpdatePayment(ctx context.Context, q database.Querier, p *model.Payment) error {
	query := `update payments set status = ?, external_id = ?, external_processor = ?, bank_account_id = ?, payment_method_id = ?, last_updated_at = ?
where payment_id = ?;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	p.Updated = time.Now().UTC()
	_, err = stmt.ExecContext(ctx,
		p.Status,
		p.ExternalID,
		p.ExternalProcessor,
		nullBankAccount(p.BankAccountID),
		nullPaymentMethod(p.PaymentMethodID),
		p.Updated,
		p.ID,
	)
	return err
}

func GetPayment(ctx context.Context, q database.Querier, paymentID id.Payment) (*model.Payment, error) {
	query := `select ` + paymentColumns + ` from payments where payment_id = ? limit 1;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	p, err := scanPayment(stmt.QueryRowContext(ctx, paymentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func ListPayments(ctx context.Context, q database.Querier, advanceID id.Advance) ([]*model.Payment, error) {
	query := `select ` + paymentColumns + ` from payments where advance_id = ? order by created_at asc;`
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

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %v", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row scanner) (*model.Payment, error) {
	p := &model.Payment{}
	var (
		externalID, externalProcessor  sql.NullString
		bankAccountID, paymentMethodID sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.AdvanceID,
		&p.UserID,
		&p.Amount,
		&p.ReferenceID,
		&p.Status,
		&externalID,
		&externalProcessor,
		&bankAccountID,
		&paymentMethodID,
		&p.Created,
		&p.Updated,
	)
	if err != nil {
		return nil, err
	}
	p.ExternalID = externalID.String
	p.ExternalProcessor = externalProcessor.String
	if bankAccountID.Valid {
		accountID := id.BankAccount(bankAccountID.String)
		p.BankAccountID = &accountID
	}
	if paymentMethodID.Valid {
		pmID := id.PaymentMethod(paymentMethodID.String)
		p.PaymentMethodID = &pmID
	}
	return p, nil
}

// UpdatePaymentStatus moves a payment to status, rejecting transitions which would
// move it backwards, and recomputes the advance's outstanding amount in the same
// transaction.
func UpdatePaymentStatus(ctx context.Context, db *sql.DB, paymentID id.Payment, status model.PaymentStatus) (*model.Advance, error) {
	var adv *model.Advance
	err := database.InTx(ctx, db, func(tx database.Querier) error {
		p, err := GetPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrPaymentNotFound
		}
		if p.Status == status {
			adv, err = Calculator(tx).ComputeOutstanding(ctx, p.AdvanceID)
			return err
		}
		if !p.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, p.Status, status)
		}
		p.Status = status
		if err := UpdatePayment(ctx, tx, p); err != nil {
			return fmt.Errorf("update payment=%s: %w", paymentID, err)
		}
		adv, err = Calculator(tx).ComputeOutstanding(ctx, p.AdvanceID)
		return err
	})
	return adv, err
}
