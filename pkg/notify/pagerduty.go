// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/moov-io/collections/pkg/config"

	"github.com/PagerDuty/go-pagerduty"
)

type PagerDuty struct {
	routingKey string
	hostname   string

	// manageEvent is overridden in tests
	manageEvent func(pagerduty.V2Event) (*pagerduty.V2EventResponse, error)
}

func NewPagerDuty(cfg *config.PagerDuty) (*PagerDuty, error) {
	if cfg == nil || cfg.RoutingKey == "" {
		return nil, errors.New("pagerduty: missing routing key")
	}
	hostname, _ := os.Hostname()
	return &PagerDuty{
		routingKey:  cfg.RoutingKey,
		hostname:    hostname,
		manageEvent: pagerduty.ManageEvent,
	}, nil
}

// Info is a no-op as PagerDuty only pages for critical messages.
func (pd *PagerDuty) Info(_ context.Context, _ *Message) error {
	return nil
}

func (pd *PagerDuty) Critical(_ context.Context, msg *Message) error {
	resp, err := pd.manageEvent(pd.buildEvent(msg))
	if err != nil {
		return fmt.Errorf("pagerduty: %v", err)
	}
	if resp != nil && resp.Status != "success" {
		return fmt.Errorf("pagerduty: unexpected status %q: %s", resp.Status, resp.Message)
	}
	return nil
}

func (pd *PagerDuty) buildEvent(msg *Message) pagerduty.V2Event {
	return pagerduty.V2Event{
		RoutingKey: pd.routingKey,
		Action:     "trigger",
		DedupKey:   fmt.Sprintf("%s-%s", msg.AdvanceID, msg.Subject),
		Payload: &pagerduty.V2Payload{
			Summary:   msg.Subject,
			Source:    pd.hostname,
			Severity:  "critical",
			Component: "collections",
			Details: map[string]string{
				"advanceID": msg.AdvanceID.String(),
				"userID":    msg.UserID.String(),
				"body":      msg.Body,
			},
		},
	}
}
