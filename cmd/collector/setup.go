// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/moov-io/collections/pkg/config"
	"github.com/moov-io/collections/pkg/idempotent"
	"github.com/moov-io/collections/pkg/idempotent/lru"
	"github.com/moov-io/collections/pkg/idempotent/redis"
	"github.com/moov-io/collections/pkg/processor"
	"github.com/moov-io/collections/pkg/processor/nacha"
	"github.com/moov-io/collections/pkg/schedule"
	"github.com/moov-io/collections/pkg/secrets"

	"github.com/go-kit/kit/log"
)

func tlsHttpClient(path string) (*http.Client, error) {
	tlsConfig := &tls.Config{}
	pool, err := x509.SystemCertPool()
	if pool == nil || err != nil {
		pool = x509.NewCertPool()
	}

	// read extra CA file
	if path != "" {
		bs, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("problem reading %s: %v", path, err)
		}
		ok := pool.AppendCertsFromPEM(bs)
		if !ok {
			return nil, fmt.Errorf("couldn't parse PEM in: %s", path)
		}
	}
	tlsConfig.RootCAs = pool

	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig:     tlsConfig,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			MaxConnsPerHost:     100,
			IdleConnTimeout:     1 * time.Minute,
		},
	}, nil
}

func setupGateway(logger log.Logger, cfg *config.Config, keeper *secrets.StringKeeper, windows *schedule.Windows, httpClient *http.Client) (*processor.Gateway, error) {
	var card processor.CardProcessor
	if cfg.Processors.Card != nil {
		client, err := processor.NewCardClient(logger, cfg.Processors.Card, keeper, httpClient)
		if err != nil {
			return nil, fmt.Errorf("card processor: %v", err)
		}
		card = client
	} else {
		logger.Log("startup", "no card processor configured")
	}

	var ach processor.ACHProcessor
	if cfg.Processors.ACH != nil {
		originator, err := nacha.NewOriginator(logger, cfg.Processors.ACH, keeper, windows)
		if err != nil {
			return nil, fmt.Errorf("ach processor: %v", err)
		}
		ach = originator
	} else {
		logger.Log("startup", "no ACH processor configured")
	}

	return processor.NewGateway(card, ach), nil
}

// setupRecorder returns nil when idempotency keys aren't tracked.
func setupRecorder(ctx context.Context, logger log.Logger, cfg *config.Idempotency) (idempotent.Recorder, func(), error) {
	noop := func() {}
	switch {
	case cfg == nil:
		return nil, noop, nil

	case cfg.Redis != nil:
		logger.Log("startup", fmt.Sprintf("using redis at %s for idempotency keys", cfg.Redis.Address))
		recorder, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return recorder, func() {
			if err := recorder.Close(); err != nil {
				logger.Log("exit", fmt.Sprintf("redis: %v", err))
			}
		}, nil

	case cfg.LRU != nil:
		logger.Log("startup", "using in-memory idempotency keys")
		recorder, err := lru.New(cfg.LRU.Size)
		if err != nil {
			return nil, noop, err
		}
		return recorder, noop, nil
	}
	return nil, noop, nil
}
