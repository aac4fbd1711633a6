// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package funding

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/moov-io/collections/pkg/database"
	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"
)

func CreatePaymentMethod(ctx context.Context, q database.Querier, pm *model.PaymentMethod) error {
	if pm == nil {
		return errors.New("nil PaymentMethod")
	}
	query := `insert into payment_methods (payment_method_id, user_id, bank_account_id, mask, encrypted_ref, linked, invalid, created_at) values (?, ?, ?, ?, ?, ?, ?, ?);`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if pm.Created.IsZero() {
		pm.Created = time.Now().UTC()
	}
	var accountID sql.NullString
	if pm.BankAccountID != nil {
		accountID = sql.NullString{String: string(*pm.BankAccountID), Valid: true}
	}
	_, err = stmt.ExecContext(ctx, pm.ID, pm.UserID, accountID, pm.Mask, pm.EncryptedRef, pm.Linked, pm.Invalid, pm.Created.UTC())
	return err
}

func GetPaymentMethod(ctx context.Context, q database.Querier, paymentMethodID id.PaymentMethod) (*model.PaymentMethod, error) {
	query := `select payment_method_id, user_id, bank_account_id, mask, encrypted_ref, linked, invalid, created_at
from payment_methods where payment_method_id = ? and deleted_at is null limit 1;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	pm := &model.PaymentMethod{}
	var accountID sql.NullString
	err = stmt.QueryRowContext(ctx, paymentMethodID).Scan(
		&pm.ID,
		&pm.UserID,
		&accountID,
		&pm.Mask,
		&pm.EncryptedRef,
		&pm.Linked,
		&pm.Invalid,
		&pm.Created,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if accountID.Valid {
		acctID := id.BankAccount(accountID.String)
		pm.BankAccountID = &acctID
	}
	return pm, nil
}

// MarkInvalid flags a card the processor has told us can never be charged.
func MarkInvalid(ctx context.Context, q database.Querier, paymentMethodID id.PaymentMethod) error {
	query := `update payment_methods set invalid = ? where payment_method_id = ?;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, true, paymentMethodID)
	return err
}
