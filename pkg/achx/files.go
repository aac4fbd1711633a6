// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package achx

import (
	"errors"
	"fmt"
	"time"

	"github.com/moov-io/ach"
	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
)

// Debit is one ACH pull from a user's bank account.
type Debit struct {
	Amount decimal.Decimal

	RoutingNumber  string
	AccountNumber  string // decrypted
	AccountType    model.AccountType
	IndividualName string

	// ReferenceID ties the entry back to its payment
	ReferenceID string

	// SameDay marks the batch for same-day settlement
	SameDay bool

	// Now is when the file is created, in the ACH cutoff timezone
	Now time.Time
}

func ConstructFile(id string, odfi config.ODFI, debit Debit) (*ach.File, error) {
	if !debit.Amount.IsPositive() {
		return nil, errors.New("non-positive debit amount")
	}
	if debit.AccountNumber == "" {
		return nil, errors.New("missing account number")
	}

	file, now := ach.NewFile(), debit.Now
	if now.IsZero() {
		now = time.Now()
	}
	file.ID = id
	file.Control = ach.NewFileControl()

	// File Header
	file.Header.ID = id

	// Set origin / destination from Gateway or from routing numbers
	file.Header.ImmediateOrigin = odfi.RoutingNumber
	if odfi.Gateway.Origin != "" {
		file.Header.ImmediateOrigin = odfi.Gateway.Origin
	}
	file.Header.ImmediateDestination = debit.RoutingNumber
	if odfi.Gateway.Destination != "" {
		file.Header.ImmediateDestination = odfi.Gateway.Destination
	}

	// Set other header fields
	file.Header.ImmediateOriginName = odfi.Gateway.OriginName
	file.Header.ImmediateDestinationName = odfi.Gateway.DestinationName

	// Set file date/time from current time
	file.Header.FileCreationDate = now.Format("060102") // YYMMDD
	file.Header.FileCreationTime = now.Format("1504")   // HHMM

	debit.Now = now
	batch, err := createPPDBatch(id, odfi, debit)
	if err != nil {
		return nil, fmt.Errorf("constructACHFile: PPD: %v", err)
	}
	file.AddBatch(batch)

	if err := file.Create(); err != nil {
		return file, err
	}

	return file, file.Validate()
}
