// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package funding

import (
	"context"
	"fmt"

	"github.com/moov-io/collections/pkg/database"
	"github.com/moov-io/collections/pkg/model"
)

// Sources returns the funding sources to collect an advance from, in order.
//
// The advance's own bank account and card come first, followed by each of the
// user's other primary bank accounts paired with their default card.
func Sources(ctx context.Context, q database.Querier, adv *model.Advance) ([]model.FundingPair, error) {
	var out []model.FundingPair

	acct, err := GetBankAccount(ctx, q, adv.BankAccountID)
	if err != nil {
		return nil, fmt.Errorf("advance bank account: %v", err)
	}
	if acct != nil {
		var card *model.PaymentMethod
		if adv.PaymentMethodID != nil {
			card, err = GetPaymentMethod(ctx, q, *adv.PaymentMethodID)
		} else {
			card, err = defaultCard(ctx, q, acct)
		}
		if err != nil {
			return nil, fmt.Errorf("advance payment method: %v", err)
		}
		out = append(out, model.FundingPair{Account: acct, Card: card})
	}

	backups, err := ListPrimaryBankAccounts(ctx, q, adv.UserID)
	if err != nil {
		return nil, fmt.Errorf("backup bank accounts: %v", err)
	}
	for i := range backups {
		if backups[i].ID.Equal(adv.BankAccountID) {
			continue
		}
		card, err := defaultCard(ctx, q, backups[i])
		if err != nil {
			return nil, fmt.Errorf("bankAccount=%s default card: %v", backups[i].ID, err)
		}
		out = append(out, model.FundingPair{Account: backups[i], Card: card})
	}
	return out, nil
}

func defaultCard(ctx context.Context, q database.Querier, acct *model.BankAccount) (*model.PaymentMethod, error) {
	if acct.DefaultPaymentID == nil {
		return nil, nil
	}
	return GetPaymentMethod(ctx, q, *acct.DefaultPaymentID)
}
