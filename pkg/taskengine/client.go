// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package taskengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/x/trace"

	"github.com/go-kit/kit/log"
)

type httpClient struct {
	endpoint     string
	pollInterval time.Duration
	waitTimeout  time.Duration

	underlying *http.Client
	logger     log.Logger
}

// NewClient returns a Client for the engine described by cfg.
func NewClient(logger log.Logger, cfg *config.TaskEngine, underlying *http.Client) (Client, error) {
	if cfg == nil {
		return nil, errors.New("nil task engine config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("task engine: %v", err)
	}
	if underlying == nil {
		underlying = &http.Client{Timeout: 30 * time.Second}
	}
	wait := cfg.WaitTimeout
	if wait <= 0 {
		wait = 2 * time.Minute
	}
	logger.Log("taskengine", fmt.Sprintf("using %s for task engine address", cfg.Endpoint))

	return &httpClient{
		endpoint:     strings.TrimSuffix(cfg.Endpoint, "/"),
		pollInterval: cfg.PollInterval,
		waitTimeout:  wait,
		underlying:   underlying,
		logger:       logger,
	}, nil
}

func (c *httpClient) CreatePaymentTask(ctx context.Context, req TaskRequest) (id.Task, error) {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(req); err != nil {
		return "", err
	}

	var out struct {
		TaskID id.Task `json:"taskID"`
	}
	if err := c.do(ctx, "create-payment-task", "POST", c.endpoint+"/tasks", &body, &out); err != nil {
		return "", fmt.Errorf("create task for advance=%s: %v", req.AdvanceID, err)
	}
	if out.TaskID == "" {
		return "", fmt.Errorf("create task for advance=%s: empty taskID", req.AdvanceID)
	}

	c.logger.Log("taskengine", fmt.Sprintf("created task=%s", out.TaskID), "advanceID", req.AdvanceID, "caller", req.Caller)

	return out.TaskID, nil
}

func (c *httpClient) WaitForTaskResult(ctx context.Context, taskID id.Task) (*TaskResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.waitTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var last *TaskResult
	for {
		result, err := c.getTask(ctx, taskID)
		switch {
		case err != nil && ctx.Err() == nil:
			return nil, err
		case result != nil:
			last = result
			if result.Status != ResultPending {
				return result, nil
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			if last == nil {
				last = &TaskResult{TaskID: taskID, Status: ResultPending}
			}
			return last, nil
		}
	}
}

func (c *httpClient) getTask(ctx context.Context, taskID id.Task) (*TaskResult, error) {
	var out TaskResult
	if err := c.do(ctx, "get-payment-task", "GET", fmt.Sprintf("%s/tasks/%s", c.endpoint, taskID), nil, &out); err != nil {
		return nil, fmt.Errorf("get task=%s: %v", taskID, err)
	}
	if out.TaskID == "" {
		out.TaskID = taskID
	}
	return &out, nil
}

func (c *httpClient) IsActiveElsewhere(ctx context.Context, advanceID id.Advance) (bool, error) {
	var out struct {
		Active bool `json:"active"`
	}
	if err := c.do(ctx, "advance-activity", "GET", fmt.Sprintf("%s/advances/%s/active", c.endpoint, advanceID), nil, &out); err != nil {
		return false, fmt.Errorf("activity of advance=%s: %v", advanceID, err)
	}
	return out.Active, nil
}

func (c *httpClient) do(ctx context.Context, name, method, address string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, address, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	span, req := trace.ClientSpan(ctx, name, req)
	defer span.Finish()

	resp, err := c.underlying.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
