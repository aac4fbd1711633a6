// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package funding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/moov-io/collections/pkg/database"
	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
)

const bankAccountColumns = `bank_account_id, user_id, is_primary, holder_name, routing_number, encrypted_account_number, account_type, available_balance, current_balance, balances_updated_at, default_payment_method_id, created_at`

func CreateBankAccount(ctx context.Context, q database.Querier, acct *model.BankAccount) error {
	if acct == nil {
		return errors.New("nil BankAccount")
	}
	query := `insert into bank_accounts (` + bankAccountColumns + `) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if acct.Created.IsZero() {
		acct.Created = time.Now().UTC()
	}
	var defaultPaymentID sql.NullString
	if acct.DefaultPaymentID != nil {
		defaultPaymentID = sql.NullString{String: string(*acct.DefaultPaymentID), Valid: true}
	}
	_, err = stmt.ExecContext(ctx,
		acct.ID,
		acct.UserID,
		acct.Primary,
		acct.HolderName,
		acct.RoutingNumber,
		acct.EncryptedAccountNumber,
		acct.Type,
		nullDecimal(acct.Balances.Available),
		nullDecimal(acct.Balances.Current),
		nullTime(acct.BalancesUpdated),
		defaultPaymentID,
		acct.Created.UTC(),
	)
	return err
}

func GetBankAccount(ctx context.Context, q database.Querier, accountID id.BankAccount) (*model.BankAccount, error) {
	query := `select ` + bankAccountColumns + ` from bank_accounts where bank_account_id = ? and deleted_at is null limit 1;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	acct, err := scanBankAccount(stmt.QueryRowContext(ctx, accountID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return acct, err
}

// ListPrimaryBankAccounts returns a user's primary bank accounts in the order they were connected.
func ListPrimaryBankAccounts(ctx context.Context, q database.Querier, userID id.User) ([]*model.BankAccount, error) {
	query := `select ` + bankAccountColumns + ` from bank_accounts where user_id = ? and is_primary = ? and deleted_at is null order by created_at asc;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.BankAccount
	for rows.Next() {
		acct, err := scanBankAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bank account: %v", err)
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

// UpdateBalances stores freshly refreshed balances on a bank account.
func UpdateBalances(ctx context.Context, q database.Querier, accountID id.BankAccount, balances model.Balances, at time.Time) error {
	query := `update bank_accounts set available_balance = ?, current_balance = ?, balances_updated_at = ? where bank_account_id = ?;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, nullDecimal(balances.Available), nullDecimal(balances.Current), at.UTC(), accountID)
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBankAccount(row scanner) (*model.BankAccount, error) {
	acct := &model.BankAccount{}
	var (
		available, current decimal.NullDecimal
		balancesUpdated    sql.NullTime
		defaultPaymentID   sql.NullString
	)
	err := row.Scan(
		&acct.ID,
		&acct.UserID,
		&acct.Primary,
		&acct.HolderName,
		&acct.RoutingNumber,
		&acct.EncryptedAccountNumber,
		&acct.Type,
		&available,
		&current,
		&balancesUpdated,
		&defaultPaymentID,
		&acct.Created,
	)
	if err != nil {
		return nil, err
	}
	if available.Valid {
		acct.Balances.Available = &available.Decimal
	}
	if current.Valid {
		acct.Balances.Current = &current.Decimal
	}
	if balancesUpdated.Valid {
		acct.BalancesUpdated = &balancesUpdated.Time
	}
	if defaultPaymentID.Valid {
		pmID := id.PaymentMethod(defaultPaymentID.String)
		acct.DefaultPaymentID = &pmID
	}
	return acct, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
