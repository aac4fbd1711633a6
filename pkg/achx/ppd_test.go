// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package achx

import (
	"testing"

	"github.com/moov-io/ach"
	"github.com/moov-io/base"
	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
)

func TestPPD__entry(t *testing.T) {
	odfi := config.ODFI{
		RoutingNumber: "987654320",
	}
	debit := Debit{
		Amount:         decimal.RequireFromString("100.00"),
		RoutingNumber:  "123456780",
		AccountNumber:  "12345",
		AccountType:    model.Savings,
		IndividualName: "Jane Doe With A Very Long Name",
		ReferenceID:    "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
	}

	ed := createPPDEntry(base.ID(), odfi, debit)
	if ed == nil {
		t.Fatal("nil PPD EntryDetail")
	}

	if ed.RDFIIdentification != "12345678" {
		t.Errorf("ed.RDFIIdentification=%s", ed.RDFIIdentification)
	}
	if ed.CheckDigit != "0" {
		t.Errorf("ed.CheckDigit=%s", ed.CheckDigit)
	}
	if ed.DFIAccountNumber != "12345" {
		t.Errorf("ed.DFIAccountNumber=%s", ed.DFIAccountNumber)
	}
	if ed.Amount != 10000 {
		t.Errorf("ed.Amount=%d", ed.Amount)
	}
	if ed.TransactionCode != ach.SavingsDebit {
		t.Errorf("ed.TransactionCode=%d", ed.TransactionCode)
	}
	if ed.IdentificationNumber != "6ba7b8109dad11d" {
		t.Errorf("ed.IdentificationNumber=%s", ed.IdentificationNumber)
	}
	if len(ed.IndividualName) != 22 {
		t.Errorf("ed.IndividualName=%q", ed.IndividualName)
	}
	if ed.TraceNumber[:8] != "98765432" {
		t.Errorf("ed.TraceNumber=%s", ed.TraceNumber)
	}
}
