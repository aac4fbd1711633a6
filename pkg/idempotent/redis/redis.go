// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package redis is a Recorder shared across every instance connected to the same
// Redis server. Keys expire after a TTL.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/idempotent"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "collections:idempotency:"
	defaultTTL = 24 * time.Hour
)

type Recorder struct {
	client *redis.Client
	ttl    time.Duration
}

var _ idempotent.Recorder = (&Recorder{})

// New connects to the address in cfg, which is either host:port or a redis:// URL.
func New(ctx context.Context, cfg *config.Redis) (*Recorder, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, errors.New("redis: missing address")
	}

	var opts *redis.Options
	if strings.HasPrefix(cfg.Address, "redis://") || strings.HasPrefix(cfg.Address, "rediss://") {
		o, err := redis.ParseURL(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %v", err)
		}
		opts = o
	} else {
		opts = &redis.Options{Addr: cfg.Address}
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping: %v", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Recorder{client: client, ttl: ttl}, nil
}

func (r *Recorder) SeenBefore(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, idempotent.ErrEmptyKey
	}
	created, err := r.client.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: set %s: %v", key, err)
	}
	return !created, nil
}

func (r *Recorder) Close() error {
	return r.client.Close()
}
