// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package nacha originates ACH debits by writing NACHA files for upload to the ODFI.
package nacha

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/moov-io/ach"
	"github.com/moov-io/base"
	"github.com/moov-io/collections/pkg/achx"
	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/model"
	"github.com/moov-io/collections/pkg/processor"
	"github.com/moov-io/collections/pkg/schedule"
	"github.com/moov-io/collections/pkg/secrets"

	"github.com/go-kit/kit/log"
	"github.com/shopspring/decimal"
)

// Originator writes one NACHA file per debit into the outbound directory.
// Files are picked up and uploaded by the ODFI's transfer agent.
type Originator struct {
	name string
	odfi config.ODFI
	dir  string

	keeper  *secrets.StringKeeper
	windows *schedule.Windows
	logger  log.Logger

	now func() time.Time
}

func NewOriginator(logger log.Logger, cfg *config.ACHProcessor, keeper *secrets.StringKeeper, windows *schedule.Windows) (*Originator, error) {
	if cfg == nil {
		return nil, errors.New("nil ACH processor config")
	}
	if windows == nil {
		return nil, errors.New("nil banking windows")
	}
	dir := cfg.OutboundDirectory
	if dir == "" {
		dir = "outbound"
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, fmt.Errorf("nacha: outbound directory: %v", err)
	}
	return &Originator{
		name:    cfg.Name,
		odfi:    cfg.ODFI,
		dir:     dir,
		keeper:  keeper,
		windows: windows,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// ChargeACH writes a PPD debit against account. Debits created inside the same-day
// window are flagged for same-day settlement.
func (o *Originator) ChargeACH(ctx context.Context, account *model.BankAccount, amount decimal.Decimal, referenceID string) (*processor.Response, error) {
	now := o.now().In(o.windows.Location())
	if !o.windows.InACHWindow(now) {
		return nil, &model.OutsideACHWindowError{At: now}
	}

	accountNumber, err := o.keeper.DecryptString(ctx, account.EncryptedAccountNumber)
	if err != nil {
		return nil, fmt.Errorf("decrypt bankAccount=%s account number: %v", account.ID, err)
	}

	fileID := base.ID()
	file, err := achx.ConstructFile(fileID, o.odfi, achx.Debit{
		Amount:         amount,
		RoutingNumber:  account.RoutingNumber,
		AccountNumber:  accountNumber,
		AccountType:    account.Type,
		IndividualName: account.HolderName,
		ReferenceID:    referenceID,
		SameDay:        o.windows.InSameDayWindow(now),
		Now:            now,
	})
	if err != nil {
		return nil, &processor.Error{Processor: o.name, Code: "invalid-file", Message: err.Error()}
	}

	path := filepath.Join(o.dir, filename(now, referenceID))
	if err := write(path, file); err != nil {
		return nil, fmt.Errorf("nacha: writing %s: %v", path, err)
	}

	traceNumber := file.Batches[0].GetEntries()[0].TraceNumber
	o.logger.Log("processor", fmt.Sprintf("wrote ACH debit of %s for bankAccount=%s", model.FormatAmount(amount), account.ID),
		"referenceID", referenceID, "traceNumber", traceNumber, "file", path)

	return &processor.Response{
		ExternalID:    traceNumber,
		Status:        model.PaymentPending,
		Processor:     o.name,
		BankAccountID: &account.ID,
	}, nil
}

func filename(now time.Time, referenceID string) string {
	return fmt.Sprintf("%s-%s.ach", now.Format("20060102-150405"), referenceID)
}

func write(path string, file *ach.File) error {
	fd, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ach.NewWriter(fd).Write(file); err != nil {
		fd.Close()
		return err
	}
	if err := fd.Sync(); err != nil {
		fd.Close()
		return err
	}
	return fd.Close()
}
