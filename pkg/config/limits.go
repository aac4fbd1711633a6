// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"fmt"

	"github.com/moov-io/collections/pkg/model"
)

type Limits struct {
	Fixed *FixedLimits
}

// FixedLimits rejects any single collection above HardLimit, formatted as "USD 500.00".
type FixedLimits struct {
	HardLimit string
}

func (cfg Limits) Validate() error {
	if cfg.Fixed != nil {
		if _, err := model.ParseAmount(cfg.Fixed.HardLimit); err != nil {
			return fmt.Errorf("fixed: hard limit: %v", err)
		}
	}
	return nil
}
