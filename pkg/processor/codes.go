// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package processor

import (
	"strings"

	"github.com/moov-io/collections/pkg/config"
)

// Codes classifies processor response codes. Codes differ per processor so
// they're read from config rather than hardcoded.
type Codes struct {
	insufficientFunds map[string]map[string]bool
	fatal             map[string]map[string]bool
}

func NewCodes(cfg config.Processors) Codes {
	codes := Codes{
		insufficientFunds: make(map[string]map[string]bool),
		fatal:             make(map[string]map[string]bool),
	}
	if cfg.Card != nil {
		codes.Add(cfg.Card.Name, cfg.Card.ResponseCodes)
	}
	if cfg.ACH != nil {
		codes.Add(cfg.ACH.Name, cfg.ACH.ResponseCodes)
	}
	return codes
}

// Add registers the response codes of processor.
func (c Codes) Add(processor string, rc config.ResponseCodes) {
	processor = strings.ToLower(processor)
	if c.insufficientFunds[processor] == nil {
		c.insufficientFunds[processor] = make(map[string]bool)
	}
	if c.fatal[processor] == nil {
		c.fatal[processor] = make(map[string]bool)
	}
	for i := range rc.InsufficientFunds {
		c.insufficientFunds[processor][strings.ToUpper(rc.InsufficientFunds[i])] = true
	}
	for i := range rc.Fatal {
		c.fatal[processor][strings.ToUpper(rc.Fatal[i])] = true
	}
}

func (c Codes) lookup(table map[string]map[string]bool, err error) bool {
	perr, ok := AsError(err)
	if !ok {
		return false
	}
	return table[strings.ToLower(perr.Processor)][strings.ToUpper(perr.Code)]
}

// IsInsufficientFunds returns true if err is a processor decline for lack of funds.
func (c Codes) IsInsufficientFunds(err error) bool {
	return c.lookup(c.insufficientFunds, err)
}

// IsRecoverable returns true if err is a processor error which another rail or
// a later retry could succeed past. Errors which aren't from a processor are
// never recoverable.
func (c Codes) IsRecoverable(err error) bool {
	if _, ok := AsError(err); !ok {
		return false
	}
	return !c.lookup(c.fatal, err)
}
