// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"

	"github.com/moov-io/collections/pkg/util"
)

type Database struct {
	SQLite *SQLite
	MySQL  *MySQL
}

func (cfg Database) Validate() error {
	if cfg.SQLite == nil && cfg.MySQL == nil {
		return errors.New("no database configured")
	}
	if cfg.MySQL != nil && cfg.MySQL.Address == "" {
		return errors.New("mysql: missing address")
	}
	return nil
}

type SQLite struct {
	Path string
}

type MySQL struct {
	Address  string
	Username string
	Password string
	Database string
}

func (cfg *MySQL) GetPassword() string {
	pass := os.Getenv("MYSQL_PASSWORD")
	if cfg == nil {
		return pass
	}
	return util.Or(pass, cfg.Password)
}
