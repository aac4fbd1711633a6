// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/moov-io/collections/pkg/util"
)

// Windows holds the ACH cutoffs, all read in Timezone.
type Windows struct {
	Timezone      string
	SameDayCutoff string
	NextDayCutoff string

	// Holidays are extra non-banking days formatted as 2006-01-02.
	Holidays []string
}

func DefaultWindows() Windows {
	return Windows{
		Timezone:      "America/Los_Angeles",
		SameDayCutoff: "08:55",
		NextDayCutoff: "15:55",
	}
}

func (cfg Windows) Location() (*time.Location, error) {
	if cfg.Timezone == "" {
		return nil, errors.New("missing timezone")
	}
	return time.LoadLocation(cfg.Timezone)
}

func (cfg Windows) Validate() error {
	if _, err := cfg.Location(); err != nil {
		return err
	}
	if _, err := time.Parse("15:04", cfg.SameDayCutoff); err != nil {
		return fmt.Errorf("same-day cutoff: %v", err)
	}
	if _, err := time.Parse("15:04", cfg.NextDayCutoff); err != nil {
		return fmt.Errorf("next-day cutoff: %v", err)
	}
	for i := range cfg.Holidays {
		if _, err := time.Parse(util.YYMMDDTimeFormat, cfg.Holidays[i]); err != nil {
			return fmt.Errorf("holiday %q: %v", cfg.Holidays[i], err)
		}
	}
	return nil
}
