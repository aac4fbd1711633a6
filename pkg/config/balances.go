// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"time"
)

type Balances struct {
	Endpoint string
	Timeout  time.Duration
}

type TaskEngine struct {
	Endpoint     string
	PollInterval time.Duration
	WaitTimeout  time.Duration
}

func (cfg *TaskEngine) Validate() error {
	if cfg == nil {
		return nil
	}
	if cfg.Endpoint == "" {
		return errors.New("missing endpoint")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	return nil
}
