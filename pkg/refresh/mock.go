// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/moov-io/collections/pkg/id"
	"github.com/moov-io/collections/pkg/model"
)

type MockCall struct {
	AdvanceID id.Advance
	Options   Options
}

// MockCollector records calls to RefreshAndCollect and tracks how many ran at once.
type MockCollector struct {
	mu sync.Mutex

	Result *Result
	Err    error
	Delay  time.Duration

	Calls       []MockCall
	inFlight    int
	MaxInFlight int
}

func (c *MockCollector) RefreshAndCollect(ctx context.Context, adv *model.Advance, opts Options) (*Result, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, MockCall{AdvanceID: adv.ID, Options: opts})
	c.inFlight++
	if c.inFlight > c.MaxInFlight {
		c.MaxInFlight = c.inFlight
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Result != nil {
		result := *c.Result
		return &result, nil
	}
	return &Result{Status: StatusSuccess}, nil
}

func (c *MockCollector) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}
