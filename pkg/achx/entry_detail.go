// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package achx

import (
	"github.com/moov-io/ach"
	"github.com/moov-io/collections/pkg/model"
)

func determineTransactionCode(accountType model.AccountType) int {
	switch accountType {
	case model.Checking:
		return ach.CheckingDebit
	case model.Savings:
		return ach.SavingsDebit
	}
	return 0 // invalid, represents a logic bug
}
