// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package collection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/moov-io/collections/pkg/model"
	"github.com/moov-io/collections/pkg/processor"
)

// Classify maps err onto the FailureReason stored with an attempt.
func Classify(err error, codes processor.Codes) model.FailureReason {
	if err == nil {
		return model.FailureReason{}
	}

	var reason model.FailureReason
	if errors.As(err, &reason) {
		return reason
	}
	if errors.Is(err, ErrConflict) {
		return model.NewFailure(model.FailureConflict, err.Error())
	}

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		reasons := make([]string, 0, len(verr.Reasons))
		for i := range verr.Reasons {
			reasons = append(reasons, verr.Reasons[i].Message)
		}
		return model.NewFailure(model.FailureValidation, verr.Error()).With("reasons", reasons)
	}

	var werr *model.OutsideACHWindowError
	if errors.As(err, &werr) {
		return model.NewFailure(model.FailureOutsideACHWindow, werr.Error()).With("at", werr.At)
	}

	var terr *model.RefreshTimeoutError
	if errors.As(err, &terr) {
		return model.NewFailure(model.FailureRefreshTimeout, terr.Error()).With("bankAccountID", terr.BankAccountID)
	}

	if perr, ok := processor.AsError(err); ok {
		kind := model.FailureProcessorFatal
		if codes.IsInsufficientFunds(err) || codes.IsRecoverable(err) {
			kind = model.FailureProcessorRecoverable
		}
		return model.NewFailure(kind, perr.Error()).
			With("processor", perr.Processor).
			With("code", perr.Code)
	}

	return model.NewFailure(model.FailureUnexpected, err.Error())
}

// UserMessage returns text safe to show the user for a failed payment.
func UserMessage(err error) string {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		var msgs []string
		for i := range verr.Reasons {
			if verr.Reasons[i].Message != "" {
				msgs = append(msgs, verr.Reasons[i].Message)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, ", ")
		}
		return "payment is not allowed"
	}
	if perr, ok := processor.AsError(err); ok {
		if perr.Message != "" {
			return fmt.Sprintf("payment was declined: %s", perr.Message)
		}
		return "payment was declined"
	}
	return "payment processing failed"
}
