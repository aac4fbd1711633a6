// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package ledger

import (
	"context"
	"sync"

	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
)

type MockStore struct {
	mu sync.Mutex

	Advances  map[id.Advance]*model.Advance
	Payments  []*model.Payment
	Reversals []*model.Reversal

	Updates int
	Err     error
}

func (s *MockStore) GetAdvance(_ context.Context, advanceID id.Advance) (*model.Advance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	if adv, ok := s.Advances[advanceID]; ok {
		out := *adv
		return &out, nil
	}
	return nil, nil
}

func (s *MockStore) ListPayments(_ context.Context, advanceID id.Advance) ([]*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Payment
	for i := range s.Payments {
		if s.Payments[i].AdvanceID == advanceID {
			out = append(out, s.Payments[i])
		}
	}
	return out, s.Err
}

func (s *MockStore) ListReversals(_ context.Context, advanceID id.Advance) ([]*model.Reversal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Reversal
	for i := range s.Reversals {
		if s.Reversals[i].AdvanceID == advanceID {
			out = append(out, s.Reversals[i])
		}
	}
	return out, s.Err
}

func (s *MockStore) UpdateOutstanding(_ context.Context, advanceID id.Advance, outstanding decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	if adv, ok := s.Advances[advanceID]; ok {
		adv.Outstanding = outstanding
		s.Updates++
	}
	return nil
}
