// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"time"
)

type Events struct {
	Stream *StreamConfig
	Queue  Queue
}

type StreamConfig struct {
	InMem *InMemory
	Kafka *KafkaConfig
}

type InMemory struct {
	URL string
}

type KafkaConfig struct {
	Brokers []string
	Group   string
	Topic   string
}

// Queue bounds the background publishing of lifecycle events and notifications.
type Queue struct {
	Workers    int
	Capacity   int
	MaxRetries int
	Backoff    time.Duration
}

func DefaultQueue() Queue {
	return Queue{
		Workers:    2,
		Capacity:   1000,
		MaxRetries: 3,
		Backoff:    100 * time.Millisecond,
	}
}

func (cfg Events) Validate() error {
	if cfg.Stream != nil {
		if cfg.Stream.InMem == nil && cfg.Stream.Kafka == nil {
			return errors.New("stream: no inmem or kafka config")
		}
		if k := cfg.Stream.Kafka; k != nil {
			if len(k.Brokers) == 0 || k.Topic == "" {
				return errors.New("stream: kafka: missing brokers or topic")
			}
		}
	}
	if cfg.Queue.Workers <= 0 || cfg.Queue.Capacity <= 0 {
		return errors.New("queue: workers and capacity must be positive")
	}
	if cfg.Queue.MaxRetries < 0 {
		return errors.New("queue: negative max retries")
	}
	return nil
}
