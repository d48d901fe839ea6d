// Copyright 2026 © The Policyagent Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps audit records in SQLite so they can be queried with SQL
// during a session.
type SQLiteStore struct {
	db *sql.DB
}

// OpenInMemory opens a private in-memory SQLite database named name and
// returns a store on it. Closing the returned DB discards all records.
func OpenInMemory(name string) (*SQLiteStore, *sql.DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		return nil, nil, err
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db, nil
}

// NewSQLiteStore creates a SQLite-backed audit store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Record stores a single audit record.
func (s *SQLiteStore) Record(ctx context.Context, rec Record) error {
	rec = normalize(rec)
	params, err := encodeParams(rec.Params)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tool_audit (
			id, run_id, tool, params_json, observation, outcome, rule_id, at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.RunID,
		rec.Tool,
		string(params),
		rec.Observation,
		string(rec.Outcome),
		rec.RuleID,
		rec.At,
	)
	return err
}

// List returns records matching the filter in insertion order.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := `
		SELECT id, run_id, tool, params_json, observation, outcome, rule_id, at
		FROM tool_audit
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.RunID != "" {
		addFilter("run_id = ?", filter.RunID)
	}
	if filter.Tool != "" {
		addFilter("tool = ?", filter.Tool)
	}
	if filter.Outcome != "" {
		addFilter("outcome = ?", string(filter.Outcome))
	}
	query += where + " ORDER BY rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec     Record
			params  string
			outcome string
			at      sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Tool, &params, &rec.Observation, &outcome, &rec.RuleID, &at); err != nil {
			return nil, err
		}
		if decoded, err := decodeParams(params); err == nil {
			rec.Params = decoded
		}
		rec.Outcome = Outcome(outcome)
		if at.Valid {
			rec.At = at.Time
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tool_audit (
			id TEXT PRIMARY KEY,
			run_id TEXT,
			tool TEXT NOT NULL,
			params_json TEXT,
			observation TEXT,
			outcome TEXT NOT NULL,
			rule_id TEXT,
			at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_tool_audit_run ON tool_audit(run_id);
		CREATE INDEX IF NOT EXISTS idx_tool_audit_outcome ON tool_audit(outcome);
	`)
	return err
}
