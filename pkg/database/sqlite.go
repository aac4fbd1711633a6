// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moov-io/collections/pkg/config"

	"github.com/go-kit/kit/log"
	kitprom "github.com/go-kit/kit/metrics/prometheus"
	"github.com/lopezator/migrator"
	"github.com/mattn/go-sqlite3"
	stdprom "github.com/prometheus/client_golang/prometheus"
)

var (
	sqliteConnections = kitprom.NewGaugeFrom(stdprom.GaugeOpts{
		Name: "sqlite_connections",
		Help: "How many sqlite connections and what status they're in.",
	}, []string{"state"})

	sqliteVersionLogOnce sync.Once

	sqliteMigrations = migrator.Migrations(
		execsql(
			"create_advances",
			`create table if not exists advances(advance_id primary key, user_id, amount, fee, tip_amount, outstanding, payback_date datetime, disbursement_status, disbursement_method, bank_account_id, payment_method_id, created_at datetime, last_updated_at datetime);`,
		),
		execsql(
			"create_advances__user_id_idx",
			`create index advances_user_id on advances (user_id);`,
		),
		execsql(
			"create_payments",
			`create table if not exists payments(payment_id primary key, advance_id, user_id, amount, reference_id, status, external_id, external_processor, bank_account_id, payment_method_id, created_at datetime, last_updated_at datetime);`,
		),
		execsql(
			"create_payments__reference_id_idx",
			`create unique index payments_reference_id on payments (reference_id);`,
		),
		execsql(
			"create_reversals",
			`create table if not exists reversals(reversal_id primary key, advance_id, payment_id, amount, status, created_at datetime);`,
		),
		execsql(
			"create_collection_attempts",
			`create table if not exists collection_attempts(attempt_id primary key, advance_id, amount, trigger_name, processing boolean, payment_id, failure, created_at datetime, last_updated_at datetime);`,
		),
		execsql(
			"create_collection_attempts__processing_idx",
			`create unique index collection_attempts_processing on collection_attempts (advance_id, processing);`,
		),
		execsql(
			"create_bank_accounts",
			`create table if not exists bank_accounts(bank_account_id primary key, user_id, is_primary boolean, holder_name, routing_number, encrypted_account_number, account_type, available_balance, current_balance, balances_updated_at datetime, default_payment_method_id, created_at datetime, deleted_at datetime);`,
		),
		execsql(
			"create_payment_methods",
			`create table if not exists payment_methods(payment_method_id primary key, user_id, bank_account_id, mask, encrypted_ref, linked boolean, invalid boolean, created_at datetime, deleted_at datetime);`,
		),
		execsql(
			"create_advance_experiments",
			`create table if not exists advance_experiments(advance_id, experiment, created_at datetime, unique(advance_id, experiment));`,
		),
		execsql(
			"create_scheduled_collections",
			`create table if not exists scheduled_collections(task_id primary key, advance_id, start_at datetime, status, attempts integer, last_error, created_at datetime, last_updated_at datetime);`,
		),
		execsql(
			"create_audit_logs",
			`create table if not exists audit_logs(audit_log_id primary key, advance_id, caller, event_type, status, message, extra, created_at datetime);`,
		),
	)
)

type sqlite struct {
	path string

	connections *kitprom.Gauge
	logger      log.Logger

	err error
}

func (s *sqlite) Connect(ctx context.Context) (*sql.DB, error) {
	if s == nil {
		return nil, fmt.Errorf("nil %T", s)
	}
	if s.err != nil {
		return nil, fmt.Errorf("sqlite had error %v", s.err)
	}

	sqliteVersionLogOnce.Do(func() {
		if v, _, _ := sqlite3.Version(); v != "" {
			s.logger.Log("main", fmt.Sprintf("sqlite version %s", v))
		}
	})

	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return db, err
	}

	// Migrate our database
	if m, err := migrator.New(sqliteMigrations); err != nil {
		return db, err
	} else {
		if err := m.Migrate(db); err != nil {
			return db, err
		}
	}

	// Spin up metrics only after everything works
	go func() {
		t := time.NewTicker(1 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				stats := db.Stats()
				s.connections.With("state", "idle").Set(float64(stats.Idle))
				s.connections.With("state", "inuse").Set(float64(stats.InUse))
				s.connections.With("state", "open").Set(float64(stats.OpenConnections))
			}
		}
	}()

	return db, err
}

func sqliteConnection(logger log.Logger, path string) *sqlite {
	if path == "" {
		return nil
	}
	return &sqlite{
		path:        path,
		logger:      logger,
		connections: sqliteConnections,
	}
}

func getSqlitePath(cfg *config.SQLite) string {
	var path string
	if cfg != nil {
		path = cfg.Path
	}
	if path == "" || strings.Contains(path, "..") {
		// set default if empty or trying to escape
		// don't filepath.ABS to avoid full-fs reads
		path = "collections.db"
	}
	return path
}

// TestSQLiteDB is a wrapper around sql.DB for SQLite connections designed for tests to provide
// a clean database for each testcase.  Callers should cleanup with Close() when finished.
type TestSQLiteDB struct {
	DB *sql.DB

	dir string // temp dir created for sqlite files

	shutdown func() // context shutdown func
}

func (r *TestSQLiteDB) Close() error {
	r.shutdown()

	if err := r.DB.Close(); err != nil {
		return err
	}
	return os.RemoveAll(r.dir)
}

// CreateTestSqliteDB returns a TestSQLiteDB which can be used in tests
// as a clean sqlite database. All migrations are ran on the db before.
//
// The database is closed when the test completes.
func CreateTestSqliteDB(t *testing.T) *TestSQLiteDB {
	dir, err := ioutil.TempDir("", "collections-sqlite")
	if err != nil {
		t.Fatalf("sqlite test: %v", err)
	}

	ctx, cancelFunc := context.WithCancel(context.Background())

	// Share one connection so concurrent writers wait on each other rather than fail with SQLITE_BUSY
	path := filepath.Join(dir, "collections.db") + "?_busy_timeout=5000"
	db, err := sqliteConnection(log.NewNopLogger(), path).Connect(ctx)
	if err != nil {
		t.Fatalf("sqlite test: %v", err)
	}
	db.SetMaxOpenConns(1)

	testDB := &TestSQLiteDB{DB: db, dir: dir, shutdown: cancelFunc}
	t.Cleanup(func() { testDB.Close() })
	return testDB
}

// SqliteUniqueViolation returns true when the provided error matches the SQLite error
// for duplicate entries (violating a unique table constraint).
func SqliteUniqueViolation(err error) bool {
	match := strings.Contains(err.Error(), "UNIQUE constraint failed")
	if e, ok := err.(sqlite3.Error); ok {
		return match || e.Code == sqlite3.ErrConstraint
	}
	return match
}
