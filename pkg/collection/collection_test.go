// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package collection

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/moov-io/base"
	"github.com/moov-io/collections/pkg/advances"
	"github.com/moov-io/collections/pkg/charge"
	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/database"
	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"
	"github.com/moov-io/collections/pkg/processor"
	"github.com/moov-io/collections/pkg/schedule"

	"github.com/go-kit/kit/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func writeAdvance(t *testing.T, db *sql.DB, payback time.Time) *model.Advance {
	t.Helper()

	adv := &model.Advance{
		ID:                 id.Advance(base.ID()),
		UserID:             id.User(base.ID()),
		Amount:             dec("75"),
		Fee:                dec("5"),
		TipAmount:          dec("0"),
		Outstanding:        dec("80"),
		PaybackDate:        payback,
		DisbursementStatus: model.DisbursementCompleted,
		DisbursementMethod: model.DisbursedDebitCard,
		BankAccountID:      id.BankAccount(base.ID()),
	}
	require.NoError(t, advances.CreateAdvance(context.Background(), db, adv))
	return adv
}

func testCodes() processor.Codes {
	return processor.NewCodes(config.Processors{
		Card: &config.CardProcessor{
			Name: "tabapay",
			ResponseCodes: config.ResponseCodes{
				InsufficientFunds: []string{"51"},
				Fatal:             []string{"14"},
			},
		},
	})
}

func setupCollector(t *testing.T) (*Collector, *sql.DB, *MockValidator, *MockEvents) {
	t.Helper()

	db := database.CreateTestSqliteDB(t).DB
	validator, events := &MockValidator{}, &MockEvents{}
	c := NewCollector(log.NewNopLogger(), db, config.Collection{}, testCodes(), validator, &MockActivity{}, events)
	return c, db, validator, events
}

func completed(processorName string) charge.Func {
	return func(_ context.Context, _ decimal.Decimal, payment *model.Payment) (*processor.Response, error) {
		accountID := id.BankAccount("acct")
		return &processor.Response{
			ExternalID:    "ext-" + payment.ReferenceID,
			Status:        model.PaymentCompleted,
			Processor:     processorName,
			BankAccountID: &accountID,
		}, nil
	}
}

func failing(err error) charge.Func {
	return func(_ context.Context, _ decimal.Decimal, _ *model.Payment) (*processor.Response, error) {
		return nil, err
	}
}

func TestAttempts(t *testing.T) {
	db := database.CreateTestSqliteDB(t).DB
	ctx := context.Background()
	advanceID := id.Advance(base.ID())

	processing := true
	first := &model.CollectionAttempt{
		ID:         id.Attempt(base.ID()),
		AdvanceID:  advanceID,
		Amount:     dec("20"),
		Trigger:    model.TriggerDailyCron,
		Processing: &processing,
	}
	require.NoError(t, CreateAttempt(ctx, db, first))

	second := &model.CollectionAttempt{
		ID:         id.Attempt(base.ID()),
		AdvanceID:  advanceID,
		Amount:     dec("20"),
		Trigger:    model.TriggerWebhook,
		Processing: &processing,
	}
	require.Equal(t, ErrConflict, CreateAttempt(ctx, db, second))

	// other advances aren't blocked
	other := &model.CollectionAttempt{
		ID:         id.Attempt(base.ID()),
		AdvanceID:  id.Advance(base.ID()),
		Amount:     dec("5"),
		Trigger:    model.TriggerAdmin,
		Processing: &processing,
	}
	require.NoError(t, CreateAttempt(ctx, db, other))

	require.NoError(t, LinkPayment(ctx, db, first.ID, id.Payment("payment")))
	require.NoError(t, ClearProcessing(ctx, db, first.ID))
	require.NoError(t, CreateAttempt(ctx, db, second))

	reason := model.NewFailure(model.FailureProcessorFatal, "declined").With("code", "14")
	require.NoError(t, RecordFailure(ctx, db, second.ID, reason))
	require.NoError(t, ClearProcessing(ctx, db, second.ID))

	found, err := GetAttempt(ctx, db, second.ID)
	require.NoError(t, err)
	require.False(t, found.IsProcessing())
	require.Equal(t, model.FailureProcessorFatal, found.Failure.Kind)
	require.Equal(t, "14", found.Failure.Context["code"])
	require.Equal(t, model.TriggerWebhook, found.Trigger)
	require.True(t, dec("20").Equal(found.Amount))

	n, err := CountSuccessful(ctx, db, advanceID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	attempts, err := ListAttempts(ctx, db, advanceID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	require.True(t, attempts[0].Succeeded())
	require.False(t, attempts[1].Succeeded())

	found, err = GetAttempt(ctx, db, id.Attempt("missing"))
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestAttempts__ClearStale(t *testing.T) {
	db := database.CreateTestSqliteDB(t).DB
	ctx := context.Background()
	advanceID := id.Advance(base.ID())

	processing := true
	attempt := &model.CollectionAttempt{
		ID:         id.Attempt(base.ID()),
		AdvanceID:  advanceID,
		Amount:     dec("20"),
		Trigger:    model.TriggerDailyCron,
		Processing: &processing,
		Created:    time.Now().Add(-time.Hour),
	}
	require.NoError(t, CreateAttempt(ctx, db, attempt))

	// not old enough
	n, err := ClearStale(ctx, db, advanceID, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	n, err = ClearStale(ctx, db, advanceID, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	found, err := GetAttempt(ctx, db, attempt.ID)
	require.NoError(t, err)
	require.False(t, found.IsProcessing())
	require.Equal(t, model.FailureUnexpected, found.Failure.Kind)
}

func TestCollector__Success(t *testing.T) {
	c, db, _, events := setupCollector(t)
	ctx := context.Background()

	adv := writeAdvance(t, db, time.Now().Add(72*time.Hour))

	attempt, err := c.Collect(ctx, adv, dec("20"), completed("tabapay"), model.TriggerUserPayment, time.Now())
	require.NoError(t, err)
	require.NotNil(t, attempt.PaymentID)
	require.False(t, attempt.IsProcessing())
	require.Nil(t, attempt.Failure)

	payment, err := advances.GetPayment(ctx, db, *attempt.PaymentID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentCompleted, payment.Status)
	require.Equal(t, "tabapay", payment.ExternalProcessor)
	require.Equal(t, "ext-"+payment.ReferenceID, payment.ExternalID)
	require.Equal(t, id.BankAccount("acct"), *payment.BankAccountID)
	require.Len(t, payment.ReferenceID, 36)

	found, err := advances.GetAdvance(ctx, db, adv.ID)
	require.NoError(t, err)
	require.True(t, dec("60").Equal(found.Outstanding), found.Outstanding.String())

	stored, err := GetAttempt(ctx, db, attempt.ID)
	require.NoError(t, err)
	require.True(t, stored.Succeeded())
	require.False(t, stored.IsProcessing())

	require.Len(t, events.Updated, 1)
	require.Len(t, events.Succeeded, 1)
	require.Empty(t, events.Missed)

	// pending payments are published but not announced as collected
	attempt, err = c.Collect(ctx, adv, dec("10"), func(_ context.Context, _ decimal.Decimal, _ *model.Payment) (*processor.Response, error) {
		return &processor.Response{ExternalID: "trace", Status: model.PaymentPending, Processor: "nacha"}, nil
	}, model.TriggerDailyCron, time.Now())
	require.NoError(t, err)
	require.Len(t, events.Updated, 2)
	require.Len(t, events.Succeeded, 1)

	found, err = advances.GetAdvance(ctx, db, adv.ID)
	require.NoError(t, err)
	require.True(t, dec("50").Equal(found.Outstanding))
}

func TestCollector__Validation(t *testing.T) {
	c, db, validator, events := setupCollector(t)
	ctx := context.Background()

	adv := writeAdvance(t, db, time.Now().Add(72*time.Hour))

	validator.Reasons = []model.FailureReason{model.NewFailure(model.FailureValidation, "too many attempts")}
	called := false
	fn := func(_ context.Context, _ decimal.Decimal, _ *model.Payment) (*processor.Response, error) {
		called = true
		return nil, nil
	}

	attempt, err := c.Collect(ctx, adv, dec("20"), fn, model.TriggerDailyCron, time.Now())
	require.True(t, model.IsValidation(err))
	require.False(t, called)
	require.Equal(t, model.FailureValidation, attempt.Failure.Kind)
	require.Nil(t, attempt.PaymentID)
	require.Equal(t, "too many attempts", UserMessage(err))

	// overcollection is rejected before the processor too
	validator.Reasons = nil
	_, err = c.Collect(ctx, adv, dec("80.01"), fn, model.TriggerDailyCron, time.Now())
	require.True(t, model.IsValidation(err))
	require.False(t, called)

	payments, err := advances.ListPayments(ctx, db, adv.ID)
	require.NoError(t, err)
	require.Empty(t, payments)
	require.Empty(t, events.Updated)

	// the attempts were resolved
	attempts, err := ListAttempts(ctx, db, adv.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	for i := range attempts {
		require.False(t, attempts[i].IsProcessing())
	}
}

func TestCollector__Declined(t *testing.T) {
	c, db, _, events := setupCollector(t)
	ctx := context.Background()

	adv := writeAdvance(t, db, time.Now().Add(-72*time.Hour))

	decline := &processor.Error{Processor: "tabapay", Code: "51", Message: "insufficient funds"}
	attempt, err := c.Collect(ctx, adv, dec("20"), failing(decline), model.TriggerDailyCron, time.Now())
	require.Equal(t, decline, err)
	require.Equal(t, model.FailureProcessorRecoverable, attempt.Failure.Kind)
	require.Equal(t, "payment was declined: insufficient funds", UserMessage(err))

	payments, err := advances.ListPayments(ctx, db, adv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, model.PaymentCanceled, payments[0].Status)

	found, err := advances.GetAdvance(ctx, db, adv.ID)
	require.NoError(t, err)
	require.True(t, dec("80").Equal(found.Outstanding))

	require.Len(t, events.Missed, 1)
	require.Len(t, events.Updated, 1)
	require.Empty(t, events.Succeeded)

	// unexpected errors leave the payment unknown, which still counts as collected
	_, err = c.Collect(ctx, adv, dec("20"), failing(errors.New("connection reset")), model.TriggerDailyCron, time.Now())
	require.Error(t, err)
	require.Equal(t, "payment processing failed", UserMessage(err))

	found, err = advances.GetAdvance(ctx, db, adv.ID)
	require.NoError(t, err)
	require.True(t, dec("60").Equal(found.Outstanding))
}

func TestCollector__Conflict(t *testing.T) {
	c, db, _, _ := setupCollector(t)
	ctx := context.Background()

	adv := writeAdvance(t, db, time.Now().Add(72*time.Hour))

	started, release := make(chan struct{}), make(chan struct{})
	blocking := func(ctx context.Context, amount decimal.Decimal, payment *model.Payment) (*processor.Response, error) {
		close(started)
		<-release
		return completed("tabapay")(ctx, amount, payment)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = c.Collect(ctx, adv, dec("20"), blocking, model.TriggerDailyCron, time.Now())
	}()

	<-started
	attempt, err := c.Collect(ctx, adv, dec("20"), completed("tabapay"), model.TriggerWebhook, time.Now())
	require.Equal(t, ErrConflict, err)
	require.Nil(t, attempt)
	require.Equal(t, model.FailureConflict, Classify(err, testCodes()).Kind)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)

	// once resolved another attempt can run
	_, err = c.Collect(ctx, adv, dec("20"), completed("tabapay"), model.TriggerWebhook, time.Now())
	require.NoError(t, err)

	found, err := advances.GetAdvance(ctx, db, adv.ID)
	require.NoError(t, err)
	require.True(t, dec("40").Equal(found.Outstanding))
}

func TestCollector__StaleAttempt(t *testing.T) {
	c, db, _, _ := setupCollector(t)
	ctx := context.Background()

	adv := writeAdvance(t, db, time.Now().Add(72*time.Hour))

	processing := true
	stale := &model.CollectionAttempt{
		ID:         id.Attempt(base.ID()),
		AdvanceID:  adv.ID,
		Amount:     dec("20"),
		Trigger:    model.TriggerDailyCron,
		Processing: &processing,
		Created:    time.Now().Add(-45 * time.Minute),
	}
	require.NoError(t, CreateAttempt(ctx, db, stale))

	_, err := c.Collect(ctx, adv, dec("20"), completed("tabapay"), model.TriggerDailyCron, time.Now())
	require.NoError(t, err)

	found, err := GetAttempt(ctx, db, stale.ID)
	require.NoError(t, err)
	require.False(t, found.IsProcessing())
}

func TestCollector__Panic(t *testing.T) {
	c, db, _, events := setupCollector(t)
	ctx := context.Background()

	adv := writeAdvance(t, db, time.Now().Add(72*time.Hour))

	panicking := func(_ context.Context, _ decimal.Decimal, _ *model.Payment) (*processor.Response, error) {
		panic("processor client bug")
	}
	func() {
		defer func() {
			require.Equal(t, "processor client bug", recover())
		}()
		c.Collect(ctx, adv, dec("20"), panicking, model.TriggerAdmin, time.Now())
	}()

	attempts, err := ListAttempts(ctx, db, adv.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.False(t, attempts[0].IsProcessing())
	require.Equal(t, model.FailureUnexpected, attempts[0].Failure.Kind)
	require.Contains(t, attempts[0].Failure.Message, "processor client bug")
	require.Empty(t, events.Updated)

	// the advance isn't blocked by the panicked attempt
	attempt, err := c.Collect(ctx, adv, dec("20"), completed("tabapay"), model.TriggerAdmin, time.Now())
	require.NoError(t, err)
	require.True(t, attempt.Succeeded())

	// the pending payment left by the panic still counts until it's reconciled
	found, err := advances.GetAdvance(ctx, db, adv.ID)
	require.NoError(t, err)
	require.True(t, dec("40").Equal(found.Outstanding), found.Outstanding.String())
}

func TestCollector__ZeroTime(t *testing.T) {
	c, db, _, events := setupCollector(t)
	ctx := context.Background()

	adv := writeAdvance(t, db, time.Now().Add(-72*time.Hour))

	processing := true
	stale := &model.CollectionAttempt{
		ID:         id.Attempt(base.ID()),
		AdvanceID:  adv.ID,
		Amount:     dec("20"),
		Trigger:    model.TriggerDailyCron,
		Processing: &processing,
		Created:    time.Now().Add(-45 * time.Minute),
	}
	require.NoError(t, CreateAttempt(ctx, db, stale))

	decline := &processor.Error{Processor: "tabapay", Code: "51"}
	attempt, err := c.Collect(ctx, adv, dec("20"), failing(decline), model.TriggerDailyCron, time.Time{})
	require.Equal(t, decline, err)
	require.NotNil(t, attempt)
	require.False(t, attempt.Created.IsZero())

	found, err := GetAttempt(ctx, db, stale.ID)
	require.NoError(t, err)
	require.False(t, found.IsProcessing())

	// the payback date is checked against the current time
	require.Len(t, events.Missed, 1)
}

func TestCollector__CardFallsBackToACH(t *testing.T) {
	c, db, _, events := setupCollector(t)
	ctx := context.Background()

	windows, err := schedule.NewWindows(config.DefaultWindows())
	require.NoError(t, err)

	card := &processor.MockCardProcessor{
		Name: "tabapay",
		Err:  &processor.Error{Processor: "tabapay", Code: "05", Message: "do not honor"},
	}
	ach := &processor.MockACHProcessor{Name: "nacha", Status: model.PaymentPending}
	selector := charge.NewSelector(log.NewNopLogger(), processor.NewGateway(card, ach), windows, testCodes())
	selector.SetClock(func() time.Time {
		// Tuesday, inside the same-day window
		return time.Date(2026, time.October, 20, 8, 0, 0, 0, windows.Location())
	})

	adv := writeAdvance(t, db, time.Now().Add(72*time.Hour))
	pm := &model.PaymentMethod{
		ID:            id.PaymentMethod(base.ID()),
		UserID:        adv.UserID,
		BankAccountID: &adv.BankAccountID,
		EncryptedRef:  "token",
		Linked:        true,
	}
	account := &model.BankAccount{ID: adv.BankAccountID, UserID: adv.UserID}

	fn, err := selector.Build(adv, pm, account)
	require.NoError(t, err)

	attempt, err := c.Collect(ctx, adv, dec("20"), fn, model.TriggerDailyCron, time.Now())
	require.NoError(t, err)
	require.True(t, attempt.Succeeded())
	require.Len(t, card.Calls, 1)
	require.Len(t, ach.Calls, 1)

	payment, err := advances.GetPayment(ctx, db, *attempt.PaymentID)
	require.NoError(t, err)
	require.Equal(t, "nacha", payment.ExternalProcessor)
	require.Equal(t, model.PaymentPending, payment.Status)
	require.Equal(t, "ach-"+payment.ReferenceID, payment.ExternalID)
	require.Equal(t, adv.BankAccountID, *payment.BankAccountID)
	require.Nil(t, payment.PaymentMethodID)

	found, err := advances.GetAdvance(ctx, db, adv.ID)
	require.NoError(t, err)
	require.True(t, dec("60").Equal(found.Outstanding))
	require.Len(t, events.Updated, 1)
	require.Empty(t, events.Succeeded)
}

func TestClassify(t *testing.T) {
	codes := testCodes()

	require.Equal(t, model.FailureConflict, Classify(ErrConflict, codes).Kind)
	require.Equal(t, model.FailureValidation, Classify(&model.ValidationError{}, codes).Kind)
	require.Equal(t, model.FailureOutsideACHWindow, Classify(&model.OutsideACHWindowError{At: time.Now()}, codes).Kind)
	require.Equal(t, model.FailureRefreshTimeout, Classify(&model.RefreshTimeoutError{BankAccountID: "acct"}, codes).Kind)
	require.Equal(t, model.FailureProcessorRecoverable, Classify(&processor.Error{Processor: "tabapay", Code: "05"}, codes).Kind)
	require.Equal(t, model.FailureProcessorFatal, Classify(&processor.Error{Processor: "tabapay", Code: "14"}, codes).Kind)
	require.Equal(t, model.FailureUnexpected, Classify(errors.New("boom"), codes).Kind)

	reason := Classify(&processor.Error{Processor: "tabapay", Code: "51"}, codes)
	require.Equal(t, model.FailureProcessorRecoverable, reason.Kind)
	require.Equal(t, "51", reason.Context["code"])

	existing := model.NewFailure(model.FailureRefreshTimeout, "slow")
	require.Equal(t, existing, Classify(existing, codes))
}

func TestUserMessage(t *testing.T) {
	require.Equal(t, "payment is not allowed", UserMessage(&model.ValidationError{}))
	require.Equal(t, "payment was declined", UserMessage(&processor.Error{Code: "05"}))
	require.Equal(t, "payment processing failed", UserMessage(&model.OutsideACHWindowError{}))
	require.Equal(t, "payment processing failed", UserMessage(nil))
}
