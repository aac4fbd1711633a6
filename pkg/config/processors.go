// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/moov-io/ach"
)

type Processors struct {
	Card    *CardProcessor
	ACH     *ACHProcessor
	Secrets Secrets
}

type CardProcessor struct {
	Name     string
	Endpoint string
	Timeout  time.Duration

	ResponseCodes ResponseCodes
}

type ResponseCodes struct {
	// InsufficientFunds codes mean the card or account has no money.
	InsufficientFunds []string

	// Fatal codes are never retried on another rail.
	Fatal []string
}

type ACHProcessor struct {
	Name string
	ODFI ODFI

	// OutboundDirectory is where NACHA files are written for upload.
	OutboundDirectory string

	ResponseCodes ResponseCodes
}

type ODFI struct {
	RoutingNumber         string
	Gateway               Gateway
	CompanyIdentification string
	CompanyName           string
}

type Gateway struct {
	Origin          string
	OriginName      string
	Destination     string
	DestinationName string
}

type Secrets struct {
	// KeyURI is a gocloud.dev/secrets URL, base64key:// or hashivault://
	KeyURI string
}

func (cfg Processors) Validate() error {
	if cfg.Card != nil {
		if cfg.Card.Name == "" {
			return errors.New("card: missing name")
		}
		if cfg.Card.Endpoint == "" {
			return errors.New("card: missing endpoint")
		}
	}
	if cfg.ACH != nil {
		if cfg.ACH.Name == "" {
			return errors.New("ach: missing name")
		}
		if err := ach.CheckRoutingNumber(cfg.ACH.ODFI.RoutingNumber); err != nil {
			return fmt.Errorf("ach: odfi: %v", err)
		}
		if cfg.ACH.OutboundDirectory == "" {
			return errors.New("ach: missing outbound directory")
		}
	}
	return nil
}

// Codes returns the configured response codes for the named processor.
func (cfg Processors) Codes(name string) ResponseCodes {
	if cfg.Card != nil && cfg.Card.Name == name {
		return cfg.Card.ResponseCodes
	}
	if cfg.ACH != nil && cfg.ACH.Name == name {
		return cfg.ACH.ResponseCodes
	}
	return ResponseCodes{}
}
