// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package funding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"
	"github.com/moov-io/collections/x/trace"

	"github.com/go-kit/kit/log"
	"github.com/shopspring/decimal"
)

// RefreshRequest describes why a bank account's balances are being refreshed.
type RefreshRequest struct {
	Reason    string     `json:"reason"`
	AdvanceID id.Advance `json:"advanceID,omitempty"`
	Caller    string     `json:"caller"`
}

// BalanceClient asks the bank data aggregator for live balances of a bank account.
type BalanceClient struct {
	endpoint   string
	httpClient *http.Client
	logger     log.Logger
}

// NewBalanceClient returns a BalanceClient calling the aggregator at endpoint.
//
// Example: http://balances.apps.svc.cluster.local:8080
func NewBalanceClient(logger log.Logger, endpoint string, httpClient *http.Client) *BalanceClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger.Log("funding", fmt.Sprintf("using %s for balance refresh address", endpoint))

	return &BalanceClient{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

type balanceResponse struct {
	Available *decimal.Decimal `json:"available"`
	Current   *decimal.Decimal `json:"current"`
}

func (c *BalanceClient) RefreshBalance(ctx context.Context, acct *model.BankAccount, req RefreshRequest) (model.Balances, error) {
	if acct == nil {
		return model.Balances{}, errors.New("nil BankAccount")
	}

	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(req); err != nil {
		return model.Balances{}, err
	}
	address := fmt.Sprintf("%s/bank-accounts/%s/balances/refresh", c.endpoint, acct.ID)
	r, err := http.NewRequestWithContext(ctx, "POST", address, &body)
	if err != nil {
		return model.Balances{}, err
	}
	r.Header.Set("Content-Type", "application/json")

	span, r := trace.ClientSpan(ctx, "balance-refresh", r)
	defer span.Finish()

	resp, err := c.httpClient.Do(r)
	if err != nil {
		return model.Balances{}, fmt.Errorf("balance refresh of bankAccount=%s: %w", acct.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return model.Balances{}, fmt.Errorf("balance refresh of bankAccount=%s got status: %s", acct.ID, resp.Status)
	}

	var out balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.Balances{}, fmt.Errorf("balance refresh: decode: %v", err)
	}

	c.logger.Log("funding", fmt.Sprintf("refreshed balances of bankAccount=%s", acct.ID), "reason", req.Reason, "caller", req.Caller)

	return model.Balances{Available: out.Available, Current: out.Current}, nil
}

// MockBalanceSource returns static balances per bank account, optionally after Delay.
type MockBalanceSource struct {
	mu sync.Mutex

	Balances map[id.BankAccount]model.Balances
	Delay    time.Duration
	Err      error

	Requests []RefreshRequest
}

func (m *MockBalanceSource) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

func (m *MockBalanceSource) RefreshBalance(ctx context.Context, acct *model.BankAccount, req RefreshRequest) (model.Balances, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return model.Balances{}, ctx.Err()
		}
	}
	if m.Err != nil {
		return model.Balances{}, m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Balances[acct.ID], nil
}
