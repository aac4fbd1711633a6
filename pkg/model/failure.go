// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// FailureKind discriminates the FailureReason union.
type FailureKind string

const (
	FailureConflict             FailureKind = "CONFLICT"
	FailureValidation           FailureKind = "VALIDATION_FAILURE"
	FailureProcessorRecoverable FailureKind = "PROCESSOR_RECOVERABLE"
	FailureProcessorFatal       FailureKind = "PROCESSOR_FATAL"
	FailureOutsideACHWindow     FailureKind = "OUTSIDE_ACH_WINDOW"
	FailureRefreshTimeout       FailureKind = "REFRESH_TIMEOUT"
	FailureUnexpected           FailureKind = "UNEXPECTED"
)

// FailureReason is the structured failure recorded on a CollectionAttempt.
type FailureReason struct {
	Kind    FailureKind            `json:"kind"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func NewFailure(kind FailureKind, msg string) FailureReason {
	return FailureReason{Kind: kind, Message: msg}
}

// With returns a copy of the FailureReason with key set in its Context.
func (f FailureReason) With(key string, value interface{}) FailureReason {
	ctx := make(map[string]interface{}, len(f.Context)+1)
	for k, v := range f.Context {
		ctx[k] = v
	}
	ctx[key] = value
	f.Context = ctx
	return f
}

func (f FailureReason) Error() string {
	return fmt.Sprintf("%s: %s", strings.ToLower(string(f.Kind)), f.Message)
}

// Value implements driver.Valuer so a FailureReason is stored as JSON.
func (f *FailureReason) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	bs, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(bs), nil
}

// Scan implements sql.Scanner for JSON encoded values.
func (f *FailureReason) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	}
	return fmt.Errorf("unsupported FailureReason source %T", src)
}

// ValidationError is returned when business rules or the predicted outstanding
// check reject an attempt before any money moves.
type ValidationError struct {
	Reasons []FailureReason
}

func (e *ValidationError) Error() string {
	var msgs []string
	for i := range e.Reasons {
		msgs = append(msgs, e.Reasons[i].Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, ", "))
}

// OutsideACHWindowError signals an ACH debit can't be sent right now and should be
// retried in the next valid window.
type OutsideACHWindowError struct {
	At    time.Time
	Cause error
}

func (e *OutsideACHWindowError) Error() string {
	msg := fmt.Sprintf("time %s is outside of ACH collection window", e.At.Format(time.RFC3339))
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *OutsideACHWindowError) Unwrap() error {
	return e.Cause
}

// RefreshTimeoutError is returned when a funding source's balance refresh exceeds its bound.
type RefreshTimeoutError struct {
	BankAccountID string
	Timeout       time.Duration
}

func (e *RefreshTimeoutError) Error() string {
	return fmt.Sprintf("balance refresh of bankAccount=%s exceeded %v", e.BankAccountID, e.Timeout)
}

func IsOutsideACHWindow(err error) bool {
	var e *OutsideACHWindowError
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsRefreshTimeout(err error) bool {
	var e *RefreshTimeoutError
	return errors.As(err, &e)
}
