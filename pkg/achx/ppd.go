// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package achx

import (
	"fmt"
	"strings"

	"github.com/moov-io/ach"
	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/model"
)

func createPPDBatch(id string, odfi config.ODFI, debit Debit) (ach.Batcher, error) {
	bh := makeBatchHeader(id, odfi, debit)
	bh.StandardEntryClassCode = ach.PPD

	batch, err := ach.NewBatch(bh)
	if err != nil {
		return nil, fmt.Errorf("failed to create PPD batch: %v", err)
	}

	entry := createPPDEntry(id, odfi, debit)
	batch.AddEntry(entry)
	batch.SetControl(ach.NewBatchControl())

	if err := batch.Create(); err != nil {
		return batch, err
	}
	return batch, nil
}

func createPPDEntry(id string, odfi config.ODFI, debit Debit) *ach.EntryDetail {
	ed := ach.NewEntryDetail()
	ed.ID = id

	ed.TransactionCode = determineTransactionCode(debit.AccountType)
	ed.RDFIIdentification = ABA8(debit.RoutingNumber)
	ed.CheckDigit = ABACheckDigit(debit.RoutingNumber)
	ed.DFIAccountNumber = debit.AccountNumber
	ed.Amount = model.Cents(debit.Amount)
	ed.IdentificationNumber = identificationNumber(debit.ReferenceID)
	ed.IndividualName = truncate(debit.IndividualName, 22)
	ed.TraceNumber = TraceNumber(odfi.RoutingNumber, debit.ReferenceID)
	ed.Category = ach.CategoryForward

	return ed
}

// identificationNumber fits a payment reference into the 15 character entry field.
func identificationNumber(referenceID string) string {
	return truncate(strings.ReplaceAll(referenceID, "-", ""), 15)
}
