// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package taskengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/moov-io/collections/pkg/id"
)

type MockClient struct {
	mu sync.Mutex

	Result    *TaskResult
	Active    bool
	CreateErr error
	WaitErr   error

	Requests []TaskRequest
}

func (c *MockClient) CreatePaymentTask(_ context.Context, req TaskRequest) (id.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.CreateErr != nil {
		return "", c.CreateErr
	}
	c.Requests = append(c.Requests, req)
	return id.Task(fmt.Sprintf("task-%d", len(c.Requests))), nil
}

func (c *MockClient) WaitForTaskResult(_ context.Context, taskID id.Task) (*TaskResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.WaitErr != nil {
		return nil, c.WaitErr
	}
	if c.Result == nil {
		return &TaskResult{TaskID: taskID, Status: ResultPending}, nil
	}
	result := *c.Result
	result.TaskID = taskID
	return &result, nil
}

func (c *MockClient) IsActiveElsewhere(_ context.Context, _ id.Advance) (bool, error) {
	return c.Active, nil
}
