// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package lru is an in-memory Recorder implementation. Keys are only shared within
// one process so it's intended for local dev and single instance deployments.
package lru

import (
	"context"
	"fmt"

	"github.com/moov-io/collections/pkg/idempotent"

	lru "github.com/hashicorp/golang-lru"
)

const defaultSize = 1024

type Recorder struct {
	cache *lru.Cache
}

var _ idempotent.Recorder = (&Recorder{})

// New returns a Recorder remembering up to size keys. A non-positive size uses a default.
func New(size int) (*Recorder, error) {
	if size <= 0 {
		size = defaultSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("lru: %v", err)
	}
	return &Recorder{cache: cache}, nil
}

func (r *Recorder) SeenBefore(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, idempotent.ErrEmptyKey
	}
	seen, _ := r.cache.ContainsOrAdd(key, struct{}{})
	return seen, nil
}
