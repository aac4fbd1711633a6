// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package advances

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/moov-io/base"
	"github.com/moov-io/collections/pkg/database"
	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"
)

func CreateReversal(ctx context.Context, q database.Querier, r *model.Reversal) error {
	if r == nil {
		return errors.New("nil Reversal")
	}
	if r.ID == "" {
		r.ID = base.ID()
	}
	if r.Created.IsZero() {
		r.Created = time.Now().UTC()
	}
	query := `insert into reversals (reversal_id, advance_id, payment_id, amount, status, created_at) values (?, ?, ?, ?, ?, ?);`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var paymentID sql.NullString
	if r.PaymentID != nil {
		paymentID = sql.NullString{String: string(*r.PaymentID), Valid: true}
	}
	_, err = stmt.ExecContext(ctx, r.ID, r.AdvanceID, paymentID, r.Amount, r.Status, r.Created.UTC())
	return err
}

func ListReversals(ctx context.Context, q database.Querier, advanceID id.Advance) ([]*model.Reversal, error) {
	query := `select reversal_id, advance_id, payment_id, amount, status, created_at from reversals where advance_id = ? order by created_at asc;`
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

	var out []*model.Reversal
	for rows.Next() {
		r := &model.Reversal{}
		var paymentID sql.NullString
		if err := rows.Scan(&r.ID, &r.AdvanceID, &paymentID, &r.Amount, &r.Status, &r.Created); err != nil {
			return nil, err
		}
		if paymentID.Valid {
			pID := id.Payment(paymentID.String)
			r.PaymentID = &pID
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
