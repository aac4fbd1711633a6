// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/moov-io/collections/pkg/config"
)

type Slack struct {
	webhookURL string
	client     *http.Client
}

func NewSlack(cfg *config.Slack) (*Slack, error) {
	if cfg == nil || cfg.WebhookURL == "" {
		return nil, errors.New("slack: missing webhook url")
	}
	return &Slack{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *Slack) Info(ctx context.Context, msg *Message) error {
	return s.send(ctx, marshalSlackMessage("info", msg))
}

func (s *Slack) Critical(ctx context.Context, msg *Message) error {
	return s.send(ctx, marshalSlackMessage("critical", msg))
}

func marshalSlackMessage(level string, msg *Message) string {
	out := fmt.Sprintf("[%s] %s for advance %s", level, msg.Subject, msg.AdvanceID)
	if msg.Body != "" {
		out += "\n" + msg.Body
	}
	return out
}

type slackBody struct {
	Text string `json:"text"`
}

func (s *Slack) send(ctx context.Context, text string) error {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(slackBody{Text: text}); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack: unexpected status: %s", resp.Status)
	}
	return nil
}
