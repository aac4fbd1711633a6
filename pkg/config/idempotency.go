// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"time"
)

type Idempotency struct {
	LRU   *LRU
	Redis *Redis
}

type LRU struct {
	Size int
}

type Redis struct {
	Address  string
	Password string
	TTL      time.Duration
}

func (cfg *Idempotency) Validate() error {
	if cfg == nil {
		return nil
	}
	if cfg.LRU != nil && cfg.LRU.Size <= 0 {
		return errors.New("lru: size must be positive")
	}
	if cfg.Redis != nil && cfg.Redis.Address == "" {
		return errors.New("redis: missing address")
	}
	return nil
}

type Tracing struct {
	ServiceName string
	SampleRate  float64
}

func (cfg *Tracing) Validate() error {
	if cfg == nil {
		return nil
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}
	return nil
}
