// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/moov-io/base"
	"github.com/moov-io/base/docker"
	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/idempotent"

	"github.com/ory/dockertest/v3"
)

func spawnRedis(t *testing.T) *config.Redis {
	if testing.Short() || !docker.Enabled() {
		t.Skip("skipping docker test")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatal(err)
	}
	container, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		container.Close()
	})

	cfg := &config.Redis{
		Address: fmt.Sprintf("localhost:%s", container.GetPort("6379/tcp")),
		TTL:     time.Minute,
	}
	err = pool.Retry(func() error {
		r, err := New(context.Background(), cfg)
		if err != nil {
			return err
		}
		return r.Close()
	})
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	r, err := New(ctx, spawnRedis(t))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	key := base.ID()
	if seen, err := r.SeenBefore(ctx, key); seen || err != nil {
		t.Errorf("expected not seen: %v", err)
	}
	if seen, err := r.SeenBefore(ctx, key); !seen || err != nil {
		t.Errorf("expected seen: %v", err)
	}
	if seen, _ := r.SeenBefore(ctx, base.ID()); seen {
		t.Errorf("expected not seen")
	}
	if _, err := r.SeenBefore(ctx, ""); err != idempotent.ErrEmptyKey {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRedis__config(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, nil); err == nil {
		t.Error("expected error")
	}
	if _, err := New(ctx, &config.Redis{Address: "redis://localhost:abc"}); err == nil {
		t.Error("expected error")
	}
}
