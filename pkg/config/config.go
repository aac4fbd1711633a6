// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/spf13/viper"
)

type Config struct {
	Logger  log.Logger `yaml:"-" json:"-"`
	Logging Logging

	Admin    Admin
	Database Database

	Collection Collection
	Windows    Windows
	Limits     Limits

	Processors Processors
	Balances   Balances
	TaskEngine *TaskEngine

	Events        Events
	Notifications *Notifications
	Idempotency   *Idempotency
	Tracing       *Tracing
}

type Logging struct {
	Format string
}

type Admin struct {
	BindAddress           string
	DisableConfigEndpoint bool
}

func Empty() *Config {
	return &Config{
		Logger: log.NewNopLogger(),
		Admin: Admin{
			BindAddress: ":9795",
		},
		Database: Database{
			// Set the default path inside this path if no other database is defined.
			SQLite: &SQLite{
				Path: "collections.db",
			},
		},
		Collection: DefaultCollection(),
		Windows:    DefaultWindows(),
		Events: Events{
			Queue: DefaultQueue(),
		},
	}
}

func FromFile(path string) (*Config, error) {
	cfg := Empty()
	if path != "" {
		bs, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %v", path, err)
		}
		return Read(bs)
	}
	cfg = setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Read(data []byte) (*Config, error) {
	vip := viper.New()
	vip.SetConfigType("yaml")
	if err := vip.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("problem reading config: %v", err)
	}

	cfg := Empty()
	if err := vip.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("problem unmarshaling config: %v", err)
	}

	cfg = setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(cfg *Config) *Config {
	if strings.EqualFold(cfg.Logging.Format, "json") {
		cfg.Logger = log.NewJSONLogger(os.Stderr)
	} else {
		cfg.Logger = log.NewLogfmtLogger(os.Stderr)
	}

	cfg.Logger = log.With(cfg.Logger, "ts", log.DefaultTimestampUTC)
	cfg.Logger = log.With(cfg.Logger, "caller", log.DefaultCaller)

	return cfg
}

// Validate checks a Config fields and performs various confirmations
// their values conform to expectations.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("missing Config")
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %v", err)
	}
	if err := cfg.Collection.Validate(); err != nil {
		return fmt.Errorf("collection: %v", err)
	}
	if err := cfg.Windows.Validate(); err != nil {
		return fmt.Errorf("windows: %v", err)
	}
	if err := cfg.Limits.Validate(); err != nil {
		return fmt.Errorf("limits: %v", err)
	}
	if err := cfg.Processors.Validate(); err != nil {
		return fmt.Errorf("processors: %v", err)
	}
	if err := cfg.TaskEngine.Validate(); err != nil {
		return fmt.Errorf("task engine: %v", err)
	}
	if err := cfg.Events.Validate(); err != nil {
		return fmt.Errorf("events: %v", err)
	}
	if err := cfg.Notifications.Validate(); err != nil {
		return fmt.Errorf("notifications: %v", err)
	}
	if err := cfg.Idempotency.Validate(); err != nil {
		return fmt.Errorf("idempotency: %v", err)
	}
	if err := cfg.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %v", err)
	}
	return nil
}
