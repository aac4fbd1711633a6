// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package audit records the outcome of every collection run against an advance.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/moov-io/base"
	"github.com/moov-io/collections/pkg/database"
	"github.com/moov-io/collections/pkg/id"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusPending Status = "PENDING"
)

type Entry struct {
	ID        string                 `json:"auditLogID"`
	AdvanceID id.Advance             `json:"advanceID"`
	Caller    string                 `json:"caller"`
	EventType string                 `json:"eventType"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
	Created   time.Time              `json:"created"`
}

// Writer persists audit entries.
type Writer interface {
	Write(ctx context.Context, entry *Entry) error
}

type sqlWriter struct {
	db *sql.DB
}

func NewWriter(db *sql.DB) Writer {
	return &sqlWriter{db: db}
}

func (w *sqlWriter) Write(ctx context.Context, entry *Entry) error {
	return Write(ctx, w.db, entry)
}

func Write(ctx context.Context, q database.Querier, entry *Entry) error {
	if entry == nil {
		return errors.New("nil audit Entry")
	}
	if entry.ID == "" {
		entry.ID = base.ID()
	}
	if entry.Created.IsZero() {
		entry.Created = time.Now()
	}
	entry.Created = entry.Created.UTC()

	var extra *string
	if len(entry.Extra) > 0 {
		bs, err := json.Marshal(entry.Extra)
		if err != nil {
			return err
		}
		s := string(bs)
		extra = &s
	}

	query := `insert into audit_logs (audit_log_id, advance_id, caller, event_type, status, message, extra, created_at) values (?, ?, ?, ?, ?, ?, ?, ?);`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, entry.ID, entry.AdvanceID, entry.Caller, entry.EventType, entry.Status, entry.Message, extra, entry.Created)
	return err
}

// List returns the audit entries of advanceID, oldest first.
func List(ctx context.Context, q database.Querier, advanceID id.Advance) ([]*Entry, error) {
	query := `select audit_log_id, advance_id, caller, event_type, status, message, extra, created_at from audit_logs where advance_id = ? order by created_at asc;`
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, advanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var entry Entry
		var caller, eventType, status, message, extra sql.NullString
		if err := rows.Scan(&entry.ID, &entry.AdvanceID, &caller, &eventType, &status, &message, &extra, &entry.Created); err != nil {
			return nil, err
		}
		entry.Caller = caller.String
		entry.EventType = eventType.String
		entry.Status = Status(status.String)
		entry.Message = message.String
		if extra.Valid && extra.String != "" {
			if err := json.Unmarshal([]byte(extra.String), &entry.Extra); err != nil {
				return nil, err
			}
		}
		entry.Created = entry.Created.UTC()
		out = append(out, &entry)
	}
	return out, rows.Err()
}

// MockWriter keeps entries in memory.
type MockWriter struct {
	Entries []*Entry
	Err     error
}

func (w *MockWriter) Write(_ context.Context, entry *Entry) error {
	if w.Err != nil {
		return w.Err
	}
	w.Entries = append(w.Entries, entry)
	return nil
}
