// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/moov-io/base/docker"

	"github.com/go-kit/kit/log"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/lopezator/migrator"
	"github.com/ory/dockertest/v3"
)

var (
	// mySQLErrDuplicateKey is the error code for duplicate entries
	// https://dev.mysql.com/doc/refman/8.0/en/server-error-reference.html#error_er_dup_entry
	mySQLErrDuplicateKey uint16 = 1062

	mysqlMigrations = migrator.Migrations(
		execsql(
			"create_advances",
			`create table if not exists advances(advance_id varchar(40) primary key, user_id varchar(40), amount varchar(20), fee varchar(20), tip_amount varchar(20), outstanding varchar(20), payback_date datetime, disbursement_status varchar(20), disbursement_method varchar(20), bank_account_id varchar(40), payment_method_id varchar(40), created_at datetime, last_updated_at datetime, index advances_user_id (user_id));`,
		),
		execsql(
			"create_payments",
			`create table if not exists payments(payment_id varchar(40) primary key, advance_id varchar(40), user_id varchar(40), amount varchar(20), reference_id varchar(40), status varchar(20), external_id varchar(100), external_processor varchar(40), bank_account_id varchar(40), payment_method_id varchar(40), created_at datetime, last_updated_at datetime, unique index payments_reference_id (reference_id), index payments_advance_id (advance_id));`,
		),
		execsql(
			"create_reversals",
			`create table if not exists reversals(reversal_id varchar(40) primary key, advance_id varchar(40), payment_id varchar(40), amount varchar(20), status varchar(20), created_at datetime, index reversals_advance_id (advance_id));`,
		),
		execsql(
			"create_collection_attempts",
			`create table if not exists collection_attempts(attempt_id varchar(40) primary key, advance_id varchar(40), amount varchar(20), trigger_name varchar(20), processing boolean, payment_id varchar(40), failure text, created_at datetime, last_updated_at datetime, unique index collection_attempts_processing (advance_id, processing));`,
		),
		execsql(
			"create_bank_accounts",
			`create table if not exists bank_accounts(bank_account_id varchar(40) primary key, user_id varchar(40), is_primary boolean, holder_name varchar(100), routing_number varchar(10), encrypted_account_number varchar(500), account_type varchar(20), available_balance varchar(20), current_balance varchar(20), balances_updated_at datetime, default_payment_method_id varchar(40), created_at datetime, deleted_at datetime, index bank_accounts_user_id (user_id));`,
		),
		execsql(
			"create_payment_methods",
			`create table if not exists payment_methods(payment_method_id varchar(40) primary key, user_id varchar(40), bank_account_id varchar(40), mask varchar(10), encrypted_ref varchar(500), linked boolean, invalid boolean, created_at datetime, deleted_at datetime);`,
		),
		execsql(
			"create_advance_experiments",
			`create table if not exists advance_experiments(advance_id varchar(40), experiment varchar(50), created_at datetime, unique index advance_experiments_idx (advance_id, experiment));`,
		),
		execsql(
			"create_scheduled_collections",
			`create table if not exists scheduled_collections(task_id varchar(40) primary key, advance_id varchar(40), start_at datetime, status varchar(20), attempts integer, last_error text, created_at datetime, last_updated_at datetime, index scheduled_collections_start_at (status, start_at));`,
		),
		execsql(
			"create_audit_logs",
			`create table if not exists audit_logs(audit_log_id varchar(40) primary key, advance_id varchar(40), caller varchar(100), event_type varchar(50), status varchar(20), message text, extra text, created_at datetime, index audit_logs_advance_id (advance_id));`,
		),
	)
)

type discardLogger struct{}

func (l discardLogger) Print(v ...interface{}) {}

func init() {
	gomysql.SetLogger(discardLogger{})
}

type mysql struct {
	dsn string

	logger log.Logger
}

func (my *mysql) Connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("mysql", my.dsn)
	if err != nil {
		return nil, err
	}

	// Check out DB is up and working
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// Migrate our database
	m, err := migrator.New(mysqlMigrations)
	if err != nil {
		return nil, err
	}
	if err := m.Migrate(db); err != nil {
		return nil, fmt.Errorf("mysql migrations: %v", err)
	}
	my.logger.Log("mysql", "migrations completed")

	return db, nil
}

func mysqlConnection(logger log.Logger, user, pass string, address string, database string) *mysql {
	dsn := fmt.Sprintf("%s:%s@%s/%s?%s", user, pass, address, database, "timeout=30s&tls=false&charset=utf8mb4&parseTime=true&sql_mode=ALLOW_INVALID_DATES")
	return &mysql{
		dsn:    dsn,
		logger: logger,
	}
}

// TestMySQLDB is a wrapper around sql.DB for MySQL connections designed for tests to provide
// a clean database for each testcase.  Callers should cleanup with Close() when finished.
type TestMySQLDB struct {
	DB *sql.DB

	container *dockertest.Resource
}

func (r *TestMySQLDB) Close() error {
	r.container.Close()
	return r.DB.Close()
}

// CreateTestMySQLDB returns a TestMySQLDB which can be used in tests
// as a clean mysql database. All migrations are ran on the db before.
//
// Callers should call close on the returned *TestMySQLDB.
func CreateTestMySQLDB(t *testing.T) *TestMySQLDB {
	if testing.Short() {
		t.Skip("-short flag enabled")
	}
	if !docker.Enabled() {
		t.Skip("Docker not enabled")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatal(err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8",
		Env: []string{
			"MYSQL_USER=moov",
			"MYSQL_PASSWORD=secret",
			"MYSQL_ROOT_PASSWORD=secret",
			"MYSQL_DATABASE=collections",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	err = pool.Retry(func() error {
		db, err := sql.Open("mysql", fmt.Sprintf("moov:secret@tcp(localhost:%s)/collections", resource.GetPort("3306/tcp")))
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Ping()
	})
	if err != nil {
		resource.Close()
		t.Fatal(err)
	}

	logger := log.NewNopLogger()
	address := fmt.Sprintf("tcp(localhost:%s)", resource.GetPort("3306/tcp"))

	db, err := mysqlConnection(logger, "moov", "secret", address, "collections").Connect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return &TestMySQLDB{db, resource}
}

// MySQLUniqueViolation returns true when the provided error matches the MySQL code
// for duplicate entries (violating a unique table constraint).
func MySQLUniqueViolation(err error) bool {
	match := strings.Contains(err.Error(), fmt.Sprintf("Error %d: Duplicate entry", mySQLErrDuplicateKey))
	if e, ok := err.(*gomysql.MySQLError); ok {
		return match || e.Number == mySQLErrDuplicateKey
	}
	return match
}
