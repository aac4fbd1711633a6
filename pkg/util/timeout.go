// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package util

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTimeout = errors.New("timeout exceeded")
)

// Timeout will call f with a context bounded by t. If f is still running after t has
// elapsed then ErrTimeout is returned and f's eventual result is discarded.
func Timeout(ctx context.Context, t time.Duration, f func(ctx context.Context) error) error {
	if t <= 0 {
		return f(ctx)
	}
	ctx, cancelFn := context.WithTimeout(ctx, t)
	defer cancelFn()

	answer := make(chan error, 1)
	go func() {
		answer <- f(ctx)
	}()
	select {
	case err := <-answer:
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
