// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatus__CanTransitionTo(t *testing.T) {
	require.True(t, PaymentPending.CanTransitionTo(PaymentCompleted))
	require.True(t, PaymentPending.CanTransitionTo(PaymentCanceled))
	require.True(t, PaymentCompleted.CanTransitionTo(PaymentReturned))
	require.True(t, PaymentCompleted.CanTransitionTo(PaymentChargeback))
	require.True(t, PaymentUnknown.CanTransitionTo(PaymentCompleted))

	require.False(t, PaymentCompleted.CanTransitionTo(PaymentPending))
	require.False(t, PaymentCompleted.CanTransitionTo(PaymentCanceled))
	require.False(t, PaymentCanceled.CanTransitionTo(PaymentCompleted))
	require.False(t, PaymentReturned.CanTransitionTo(PaymentCompleted))
	require.False(t, PaymentCompleted.CanTransitionTo(PaymentUnknown))
}

func TestPaymentStatus__Collected(t *testing.T) {
	require.True(t, PaymentPending.Collected())
	require.True(t, PaymentCompleted.Collected())
	require.True(t, PaymentChargeback.Collected())
	require.False(t, PaymentCanceled.Collected())
	require.False(t, PaymentReturned.Collected())

	require.True(t, ReversalCompleted.Credited())
	require.True(t, ReversalPending.Credited())
	require.False(t, ReversalFailed.Credited())
}

func TestBalances__Usable(t *testing.T) {
	avail, current := decimal.NewFromInt(40), decimal.NewFromInt(60)

	_, ok := Balances{}.Usable()
	require.False(t, ok)

	amt, ok := Balances{Available: &avail}.Usable()
	require.True(t, ok)
	require.True(t, amt.Equal(avail))

	amt, ok = Balances{Current: &current}.Usable()
	require.True(t, ok)
	require.True(t, amt.Equal(current))

	amt, _ = Balances{Available: &current, Current: &avail}.Usable()
	require.True(t, amt.Equal(avail))
}

func TestFailureReason__JSON(t *testing.T) {
	f := NewFailure(FailureProcessorFatal, "card declined").With("code", "05")

	v, err := f.Value()
	require.NoError(t, err)

	var out FailureReason
	require.NoError(t, out.Scan(v))
	require.Equal(t, FailureProcessorFatal, out.Kind)
	require.Equal(t, "05", out.Context["code"])

	require.NoError(t, out.Scan([]byte(`{"kind":"CONFLICT","message":"busy"}`)))
	require.Equal(t, FailureConflict, out.Kind)

	require.Error(t, out.Scan(12))

	var nilFailure *FailureReason
	v, err = nilFailure.Value()
	require.NoError(t, err)
	require.Nil(t, v)

	bs, err := json.Marshal(f)
	require.NoError(t, err)
	require.Contains(t, string(bs), `"kind":"PROCESSOR_FATAL"`)
	require.Equal(t, "processor_fatal: card declined", f.Error())
}

func TestErrors(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &OutsideACHWindowError{At: time.Now()})
	require.True(t, IsOutsideACHWindow(err))
	require.False(t, IsValidation(err))

	err = &ValidationError{Reasons: []FailureReason{NewFailure(FailureValidation, "a"), NewFailure(FailureValidation, "b")}}
	require.True(t, IsValidation(err))
	require.Equal(t, "validation failed: a, b", err.Error())

	cause := errors.New("declined")
	err = &OutsideACHWindowError{At: time.Now(), Cause: cause}
	require.True(t, errors.Is(err, cause))

	require.True(t, IsRefreshTimeout(&RefreshTimeoutError{BankAccountID: "a", Timeout: time.Second}))
}

func TestAdvance__PaybackPassed(t *testing.T) {
	now := time.Date(2020, time.November, 10, 12, 0, 0, 0, time.UTC)

	adv := &Advance{PaybackDate: time.Date(2020, time.November, 9, 0, 0, 0, 0, time.UTC)}
	require.True(t, adv.PaybackPassed(now))

	adv.PaybackDate = time.Date(2020, time.November, 10, 0, 0, 0, 0, time.UTC)
	require.False(t, adv.PaybackPassed(now))

	require.False(t, (&Advance{}).PaybackPassed(now))
}

func TestTrigger__Valid(t *testing.T) {
	require.True(t, TriggerDailyCron.Valid())
	require.False(t, Trigger("bogus").Valid())
}
