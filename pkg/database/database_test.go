// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/moov-io/base"
	"github.com/moov-io/collections/pkg/config"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/require"
)

func TestSQLite__basic(t *testing.T) {
	db := CreateTestSqliteDB(t)
	require.NoError(t, db.DB.Ping())
}

func TestSQLite__getSqlitePath(t *testing.T) {
	require.Equal(t, "collections.db", getSqlitePath(nil))
	require.Equal(t, "collections.db", getSqlitePath(&config.SQLite{Path: "../../etc/passwd"}))
	require.Equal(t, "other.db", getSqlitePath(&config.SQLite{Path: "other.db"}))
}

func TestSqliteUniqueViolation(t *testing.T) {
	err := errors.New(`problem creating attempt="7d676c65eccd48090ff238a0d5e35eb6126c23f2": UNIQUE constraint failed: collection_attempts.advance_id, collection_attempts.processing`)
	require.True(t, UniqueViolation(err))
	require.False(t, UniqueViolation(nil))
	require.False(t, UniqueViolation(errors.New("other")))
}

func TestMySQL__basic(t *testing.T) {
	db := CreateTestMySQLDB(t)
	defer db.Close()

	require.NoError(t, db.DB.Ping())
}

func TestMySQLUniqueViolation(t *testing.T) {
	err := errors.New(`problem creating attempt="282f6ffcd9ba5b029afbf2b739ee826e22d9df3b": Error 1062: Duplicate entry '282f6ffcd9ba5b029afbf2b739ee826e22d9df3b-1' for key 'collection_attempts_processing'`)
	require.True(t, UniqueViolation(err))
}

func TestNew__missing(t *testing.T) {
	_, err := New(context.Background(), log.NewNopLogger(), config.Database{})
	require.Error(t, err)
}

func TestProcessingIndex(t *testing.T) {
	db := CreateTestSqliteDB(t)

	query := `insert into collection_attempts (attempt_id, advance_id, processing, created_at) values (?, ?, ?, ?);`
	now := time.Now().UTC()

	_, err := db.DB.Exec(query, base.ID(), "adv1", true, now)
	require.NoError(t, err)

	_, err = db.DB.Exec(query, base.ID(), "adv1", true, now)
	require.True(t, UniqueViolation(err))

	// resolved attempts never collide
	_, err = db.DB.Exec(query, base.ID(), "adv1", nil, now)
	require.NoError(t, err)
	_, err = db.DB.Exec(query, base.ID(), "adv1", nil, now)
	require.NoError(t, err)

	// other advances are independent
	_, err = db.DB.Exec(query, base.ID(), "adv2", true, now)
	require.NoError(t, err)
}

func TestInTx(t *testing.T) {
	db := CreateTestSqliteDB(t)
	ctx := context.Background()

	insert := `insert into audit_logs (audit_log_id, advance_id, created_at) values (?, ?, ?);`

	err := InTx(ctx, db.DB, func(q Querier) error {
		_, err := q.ExecContext(ctx, insert, "a1", "adv", time.Now())
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = InTx(ctx, db.DB, func(q Querier) error {
		if _, err := q.ExecContext(ctx, insert, "a2", "adv", time.Now()); err != nil {
			return err
		}
		return boom
	})
	require.True(t, errors.Is(err, boom))

	var n int
	require.NoError(t, db.DB.QueryRow(`select count(*) from audit_logs;`).Scan(&n))
	require.Equal(t, 1, n)
}
