// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/moov-io/collections/pkg/model"

	"github.com/shopspring/decimal"
)

type Collection struct {
	// MinBalanceThreshold is the amount left in a bank account after a retrieval.
	// Formatted as "USD 5.00".
	MinBalanceThreshold string

	// StaleAttemptTimeout is how long a collection attempt can be processing
	// before another trigger is allowed to clear it.
	StaleAttemptTimeout time.Duration

	// RefreshTimeout bounds each balance refresh of a funding source.
	RefreshTimeout time.Duration

	// MaxSuccessfulAttempts caps successful attempts per advance. Zero disables the check.
	MaxSuccessfulAttempts int

	Sweep    Sweep
	Deferred Deferred
}

type Sweep struct {
	BatchSize int
	Timezone  string
	Windows   []string

	// RatePerSecond limits how many advances are started each second. Zero is unlimited.
	RatePerSecond float64
}

type Deferred struct {
	Interval time.Duration
	Limit    int

	// StaleAfter is how long a claimed task can run before another runner reclaims it.
	StaleAfter time.Duration
}

func DefaultCollection() Collection {
	return Collection{
		MinBalanceThreshold: "USD 5.00",
		StaleAttemptTimeout: 30 * time.Minute,
		RefreshTimeout:      30 * time.Second,
		Sweep: Sweep{
			BatchSize: 25,
			Timezone:  "America/Los_Angeles",
		},
		Deferred: Deferred{
			Interval:   time.Minute,
			Limit:      100,
			StaleAfter: 30 * time.Minute,
		},
	}
}

func (cfg Collection) Threshold() (decimal.Decimal, error) {
	return model.ParseAmount(cfg.MinBalanceThreshold)
}

func (cfg Collection) Validate() error {
	if _, err := cfg.Threshold(); err != nil {
		return fmt.Errorf("minimum balance threshold: %v", err)
	}
	if cfg.StaleAttemptTimeout <= 0 {
		return errors.New("stale attempt timeout must be positive")
	}
	if cfg.RefreshTimeout <= 0 {
		return errors.New("refresh timeout must be positive")
	}
	if cfg.MaxSuccessfulAttempts < 0 {
		return errors.New("negative max successful attempts")
	}
	if cfg.Sweep.BatchSize <= 0 {
		return errors.New("sweep: batch size must be positive")
	}
	if cfg.Sweep.RatePerSecond < 0 {
		return errors.New("sweep: negative rate")
	}
	if _, err := time.LoadLocation(cfg.Sweep.Timezone); err != nil {
		return fmt.Errorf("sweep: %v", err)
	}
	for i := range cfg.Sweep.Windows {
		if _, err := time.Parse("15:04", cfg.Sweep.Windows[i]); err != nil {
			return fmt.Errorf("sweep: window %q: %v", cfg.Sweep.Windows[i], err)
		}
	}
	if cfg.Deferred.Interval <= 0 {
		return errors.New("deferred: interval must be positive")
	}
	if cfg.Deferred.StaleAfter < 0 {
		return errors.New("deferred: negative stale after")
	}
	return nil
}
