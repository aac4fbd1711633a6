// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package events

import (
	"context"
	"fmt"

	"github.com/moov-io/collections/pkg/model"
	"github.com/moov-io/collections/pkg/notify"
	"github.com/moov-io/collections/pkg/util"

	"github.com/go-kit/kit/log"
	"gocloud.dev/pubsub"
)

// Topic is where payment events are published. *pubsub.Topic satisfies it.
type Topic interface {
	Send(ctx context.Context, msg *pubsub.Message) error
}

// Dispatcher queues the side effects of collection attempts. Either of topic or
// sender can be nil to skip publishing or notifying.
type Dispatcher struct {
	queue  *Queue
	topic  Topic
	sender notify.Sender
	logger log.Logger
}

func NewDispatcher(logger log.Logger, queue *Queue, topic Topic, sender notify.Sender) *Dispatcher {
	return &Dispatcher{
		queue:  queue,
		topic:  topic,
		sender: sender,
		logger: logger,
	}
}

func (d *Dispatcher) PaymentUpdated(adv *model.Advance, payment *model.Payment) {
	if d.topic == nil || adv == nil || payment == nil {
		return
	}
	msg, err := CreatePaymentEvent(adv, payment)
	if err != nil {
		d.logger.Log("events", fmt.Sprintf("problem creating event for %v: %v", payment, err), "advanceID", adv.ID)
		return
	}
	d.queue.Enqueue(Job{
		Name: "publish-payment-event",
		Run: func(ctx context.Context) error {
			return d.topic.Send(ctx, msg)
		},
	})
}

func (d *Dispatcher) CollectionSucceeded(adv *model.Advance, payment *model.Payment) {
	if d.sender == nil || adv == nil || payment == nil {
		return
	}
	msg := &notify.Message{
		AdvanceID: adv.ID,
		UserID:    adv.UserID,
		Subject:   fmt.Sprintf("collected %s", model.FormatAmount(payment.Amount)),
		Body:      fmt.Sprintf("processor %s, outstanding %s", payment.ExternalProcessor, model.FormatAmount(adv.Outstanding)),
	}
	d.queue.Enqueue(Job{
		Name: "notify-successful-collection",
		Run: func(ctx context.Context) error {
			return d.sender.Info(ctx, msg)
		},
	})
}

func (d *Dispatcher) PaybackMissed(adv *model.Advance, reason model.FailureReason) {
	if d.sender == nil || adv == nil {
		return
	}
	msg := &notify.Message{
		AdvanceID: adv.ID,
		UserID:    adv.UserID,
		Subject:   "payback date missed",
		Body:      fmt.Sprintf("payback was %s, outstanding %s: %s", adv.PaybackDate.Format(util.YYMMDDTimeFormat), model.FormatAmount(adv.Outstanding), reason.Error()),
	}
	d.queue.Enqueue(Job{
		Name: "notify-missed-payback",
		Run: func(ctx context.Context) error {
			return d.sender.Critical(ctx, msg)
		},
	})
}
