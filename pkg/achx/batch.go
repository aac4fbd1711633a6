// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package achx

import (
	"fmt"

	"github.com/moov-io/ach"
	"github.com/moov-io/base"
	"github.com/moov-io/collections/pkg/config"
)

const entryDescription = "PAYBACK"

// makeBatchHeader creates a debits only ach.BatchHeader for collecting from a user.
//
// This method does not set the StandardEntryClassCode.
func makeBatchHeader(id string, odfi config.ODFI, debit Debit) *ach.BatchHeader {
	batchHeader := ach.NewBatchHeader()
	batchHeader.ID = id
	batchHeader.ServiceClassCode = ach.DebitsOnly

	batchHeader.CompanyName = truncate(odfi.CompanyName, 16)
	batchHeader.CompanyIdentification = odfi.CompanyIdentification
	batchHeader.CompanyEntryDescription = entryDescription // 10 character max

	now := debit.Now
	if debit.SameDay {
		// Same-Day ACH uses "SDHHMM" for this field
		batchHeader.CompanyDescriptiveDate = fmt.Sprintf("SD%s", now.Format("1504"))
		batchHeader.EffectiveEntryDate = now.Format("060102")
	} else {
		batchHeader.CompanyDescriptiveDate = now.Format("060102")
		batchHeader.EffectiveEntryDate = base.NewTime(now).AddBankingDay(1).Format("060102") // Date to be posted, YYMMDD
	}
	batchHeader.ODFIIdentification = ABA8(odfi.RoutingNumber)

	return batchHeader
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
