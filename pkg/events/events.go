// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package events publishes payment lifecycle events and sends notifications in the
// background so collection attempts never wait on them.
package events

import (
	"encoding/json"
	"time"

	"github.com/moov-io/base"
	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
	"gocloud.dev/pubsub"
)

const PaymentUpdated = "PaymentUpdated"

// PaymentEvent is published whenever a collection attempt creates or updates a payment.
type PaymentEvent struct {
	EventID   string    `json:"eventID"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`

	AdvanceID id.Advance `json:"advanceID"`
	UserID    id.User    `json:"userID"`

	PaymentID   id.Payment          `json:"paymentID"`
	ReferenceID string              `json:"referenceID"`
	Amount      decimal.Decimal     `json:"amount"`
	Status      model.PaymentStatus `json:"status"`
	Processor   string              `json:"processor,omitempty"`

	Outstanding decimal.Decimal `json:"outstanding"`
}

func CreatePaymentEvent(adv *model.Advance, payment *model.Payment) (*pubsub.Message, error) {
	event := &PaymentEvent{
		EventID:     base.ID(),
		EventType:   PaymentUpdated,
		Timestamp:   time.Now(),
		AdvanceID:   adv.ID,
		UserID:      adv.UserID,
		PaymentID:   payment.ID,
		ReferenceID: payment.ReferenceID,
		Amount:      payment.Amount,
		Status:      payment.Status,
		Processor:   payment.ExternalProcessor,
		Outstanding: adv.Outstanding,
	}
	return buildMessage(event.EventID, event)
}

func buildMessage(eventID string, event interface{}) (*pubsub.Message, error) {
	bs, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	meta["eventID"] = eventID

	return &pubsub.Message{
		Body:     bs,
		Metadata: meta,
	}, nil
}
