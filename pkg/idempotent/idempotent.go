// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package idempotent

import (
	"context"
	"errors"
	"strings"
)

// Recorder offers a method to determine if a given key has been
// seen before or not. Each invocation of SeenBefore needs to
// record each key found, but there's no minimum duration required.
type Recorder interface {
	SeenBefore(ctx context.Context, key string) (bool, error)
}

var ErrEmptyKey = errors.New("empty idempotency key")

// Key joins parts into one idempotency key scoped to an operation.
// Example: collect:advance-id:request-key
func Key(parts ...string) (string, error) {
	for i := range parts {
		if strings.TrimSpace(parts[i]) == "" {
			return "", ErrEmptyKey
		}
	}
	if len(parts) == 0 {
		return "", ErrEmptyKey
	}
	return strings.Join(parts, ":"), nil
}
