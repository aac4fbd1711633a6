// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/moov-io/collections/pkg/config"

	"github.com/go-kit/kit/log"
	"github.com/lopezator/migrator"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so repository functions
// can run inside or outside of a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// New establishes a database connection according to the provided config.
// MySQL is used when configured, otherwise SQLite.
func New(ctx context.Context, logger log.Logger, cfg config.Database) (*sql.DB, error) {
	switch {
	case cfg.MySQL != nil:
		logger.Log("database", "looking for mysql database provider")
		return mysqlConnection(logger, cfg.MySQL.Username, cfg.MySQL.GetPassword(), cfg.MySQL.Address, cfg.MySQL.Database).Connect(ctx)

	case cfg.SQLite != nil:
		logger.Log("database", "looking for sqlite database provider")
		return sqliteConnection(logger, getSqlitePath(cfg.SQLite)).Connect(ctx)
	}
	return nil, errors.New("no database configured")
}

// InTx runs fn inside of a transaction which is committed when fn returns nil
// and rolled back otherwise.
func InTx(ctx context.Context, db *sql.DB, fn func(tx Querier) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rerr)
		}
		return err
	}
	return tx.Commit()
}

func execsql(name, raw string) *migrator.MigrationNoTx {
	return &migrator.MigrationNoTx{
		Name: name,
		Func: func(db *sql.DB) error {
			_, err := db.Exec(raw)
			return err
		},
	}
}

// UniqueViolation returns true when the provided error matches a database error
// for duplicate entries (violating a unique table constraint).
func UniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return MySQLUniqueViolation(err) || SqliteUniqueViolation(err)
}
