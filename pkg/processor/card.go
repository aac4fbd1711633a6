// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/model"
	"github.com/moov-io/collections/pkg/secrets"
	"github.com/moov-io/collections/x/trace"

	"github.com/go-kit/kit/log"
	"github.com/shopspring/decimal"
)

// CardClient charges debit cards through a card processor's HTTP API.
type CardClient struct {
	name     string
	endpoint string

	httpClient *http.Client
	keeper     *secrets.StringKeeper
	logger     log.Logger
}

func NewCardClient(logger log.Logger, cfg *config.CardProcessor, keeper *secrets.StringKeeper, httpClient *http.Client) (*CardClient, error) {
	if cfg == nil {
		return nil, errors.New("nil card processor config")
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger.Log("processor", fmt.Sprintf("using %s for %s card processor address", cfg.Endpoint, cfg.Name))

	return &CardClient{
		name:       cfg.Name,
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		httpClient: httpClient,
		keeper:     keeper,
		logger:     logger,
	}, nil
}

type chargeRequest struct {
	ReferenceID string `json:"referenceID"`
	Token       string `json:"token"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

type chargeResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`

	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *CardClient) ChargeCard(ctx context.Context, card *model.PaymentMethod, amount decimal.Decimal, referenceID string) (*Response, error) {
	token, err := c.keeper.DecryptString(ctx, card.EncryptedRef)
	if err != nil {
		return nil, fmt.Errorf("decrypt paymentMethod=%s token: %v", card.ID, err)
	}

	var body bytes.Buffer
	err = json.NewEncoder(&body).Encode(chargeRequest{
		ReferenceID: referenceID,
		Token:       token,
		Amount:      amount.StringFixed(2),
		Currency:    "USD",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/charges", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", referenceID)

	span, req := trace.ClientSpan(ctx, "card-charge", req)
	defer span.Finish()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: charge: %w", c.name, err)
	}
	defer resp.Body.Close()

	var out chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: charge: unexpected response status=%s: %v", c.name, resp.Status, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		code := out.Code
		if code == "" {
			code = fmt.Sprintf("%d", resp.StatusCode)
		}
		return nil, &Error{Processor: c.name, Code: code, Message: out.Message}
	}

	c.logger.Log("processor", fmt.Sprintf("charged paymentMethod=%s for %s", card.ID, model.FormatAmount(amount)), "referenceID", referenceID)

	return &Response{
		ExternalID:      out.ID,
		Status:          cardStatus(out.Status),
		Processor:       c.name,
		PaymentMethodID: &card.ID,
		BankAccountID:   card.BankAccountID,
	}, nil
}

func cardStatus(status string) model.PaymentStatus {
	switch s := model.PaymentStatus(strings.ToUpper(status)); s {
	case model.PaymentCompleted, model.PaymentPending, model.PaymentCanceled:
		return s
	}
	return model.PaymentUnknown
}
