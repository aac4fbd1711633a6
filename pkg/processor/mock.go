// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package processor

import (
	"context"
	"sync"

	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
)

// MockCall records one charge sent to a mock processor.
type MockCall struct {
	Amount      decimal.Decimal
	ReferenceID string
}

type MockCardProcessor struct {
	mu sync.Mutex

	Name   string
	Status model.PaymentStatus
	Err    error

	Calls []MockCall
}

func (m *MockCardProcessor) ChargeCard(_ context.Context, card *model.PaymentMethod, amount decimal.Decimal, referenceID string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Amount: amount, ReferenceID: referenceID})
	if m.Err != nil {
		return nil, m.Err
	}
	return &Response{
		ExternalID:      "card-" + referenceID,
		Status:          mockStatus(m.Status),
		Processor:       mockName(m.Name, "card"),
		PaymentMethodID: &card.ID,
		BankAccountID:   card.BankAccountID,
	}, nil
}

type MockACHProcessor struct {
	mu sync.Mutex

	Name   string
	Status model.PaymentStatus
	Err    error

	Calls []MockCall
}

func (m *MockACHProcessor) ChargeACH(_ context.Context, account *model.BankAccount, amount decimal.Decimal, referenceID string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Amount: amount, ReferenceID: referenceID})
	if m.Err != nil {
		return nil, m.Err
	}
	return &Response{
		ExternalID:    "ach-" + referenceID,
		Status:        mockStatus(m.Status),
		Processor:     mockName(m.Name, "ach"),
		BankAccountID: &account.ID,
	}, nil
}

func mockStatus(s model.PaymentStatus) model.PaymentStatus {
	if s == "" {
		return model.PaymentCompleted
	}
	return s
}

func mockName(name, def string) string {
	if name == "" {
		return def
	}
	return name
}
