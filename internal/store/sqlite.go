package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS state (
    scope TEXT NOT NULL,
    owner TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    expires_at INTEGER,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch()),
    PRIMARY KEY (scope, owner, key)
);

CREATE INDEX IF NOT EXISTS idx_state_expires ON state(expires_at);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    visitor_id TEXT NOT NULL DEFAULT '',
    session_id TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    label TEXT NOT NULL DEFAULT '',
    properties TEXT NOT NULL DEFAULT '{}',
    created_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_events_name ON events(name);
CREATE INDEX IF NOT EXISTS idx_events_visitor ON events(visitor_id, name);

CREATE TABLE IF NOT EXISTS waitlist (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL,
    style TEXT NOT NULL DEFAULT '',
    contact TEXT NOT NULL DEFAULT '',
    arms TEXT NOT NULL DEFAULT '{}',
    visitor_id TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    remote_addr TEXT NOT NULL DEFAULT '',
    client_time TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_waitlist_email ON waitlist(email);
`

// dsn sets the pragmas on every pooled connection, not just the first.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, eris.Wrap(err, "store: open database")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "store: apply schema")
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SetClock replaces the time source used for expiry checks.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SQLiteStore) GetState(ctx context.Context, scope Scope, owner, key string) (string, bool, error) {
	var value string
	var expiresAt sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM state WHERE scope = ? AND owner = ? AND key = ?`,
		string(scope), owner, key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "store: get state")
	}

	if expiresAt.Valid && s.now().Unix() >= expiresAt.Int64 {
		return "", false, nil
	}
	return value, true, nil
}

func (s *SQLiteStore) SetState(ctx context.Context, scope Scope, owner, key, value string, ttl time.Duration) error {
	now := s.now()
	if ttl <= 0 && scope == ScopeSession {
		ttl = SessionTTL
	}
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(ttl).Unix(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state (scope, owner, key, value, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (scope, owner, key) DO UPDATE SET
		     value = excluded.value,
		     expires_at = excluded.expires_at,
		     updated_at = excluded.updated_at`,
		string(scope), owner, key, value, expiresAt, now.Unix(),
	)
	if err != nil {
		return eris.Wrap(err, "store: set state")
	}
	return nil
}

func (s *SQLiteStore) RemoveState(ctx context.Context, scope Scope, owner, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM state WHERE scope = ? AND owner = ? AND key = ?`,
		string(scope), owner, key,
	)
	if err != nil {
		return eris.Wrap(err, "store: remove state")
	}
	return nil
}

// PurgeExpired deletes state rows whose expiry has passed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM state WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "store: purge expired state")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "store: rows affected")
	}
	return n, nil
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, e *EventRecord) error {
	props := e.Properties
	if props == nil {
		props = map[string]any{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return eris.Wrap(err, "store: marshal event properties")
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO events (name, visitor_id, session_id, category, label, properties, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Name, e.VisitorID, e.SessionID, e.Category, e.Label, string(propsJSON), createdAt.Unix(),
	)
	if err != nil {
		return eris.Wrap(err, "store: insert event")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "store: last insert id")
	}
	e.ID = id
	e.CreatedAt = time.Unix(createdAt.Unix(), 0)
	return nil
}

// ListEvents returns recorded events, newest first. An empty name lists all.
func (s *SQLiteStore) ListEvents(ctx context.Context, name string) ([]*EventRecord, error) {
	query := `SELECT id, name, visitor_id, session_id, category, label, properties, created_at FROM events`
	var args []any
	if name != "" {
		query += ` WHERE name = ?`
		args = append(args, name)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list events")
	}
	defer rows.Close()

	var events []*EventRecord
	for rows.Next() {
		var e EventRecord
		var propsJSON string
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Name, &e.VisitorID, &e.SessionID, &e.Category, &e.Label, &propsJSON, &createdAt); err != nil {
			return nil, eris.Wrap(err, "store: scan event")
		}
		if err := json.Unmarshal([]byte(propsJSON), &e.Properties); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal event properties")
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		events = append(events, &e)
	}
	return events, eris.Wrap(rows.Err(), "store: iterate events")
}

// ExposureCounts tallies distinct visitors who saw each value of experiment.
func (s *SQLiteStore) ExposureCounts(ctx context.Context, experiment string) ([]ArmCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			CAST(json_extract(properties, '$.variant') AS TEXT) AS arm,
			COUNT(DISTINCT CASE WHEN visitor_id != '' THEN visitor_id ELSE 'event:' || id END) AS exposures
		FROM events
		WHERE name = 'ab_test_view'
		  AND json_extract(properties, '$.test_name') = ?
		GROUP BY arm
		ORDER BY arm
	`, experiment)
	if err != nil {
		return nil, eris.Wrap(err, "store: exposure counts")
	}
	defer rows.Close()
	return scanArmCounts(rows)
}

// AddWaitlistEntry stores a submission and returns its queue position.
func (s *SQLiteStore) AddWaitlistEntry(ctx context.Context, e *WaitlistEntry) (int64, error) {
	arms := e.Arms
	if arms == nil {
		arms = map[string]string{}
	}
	armsJSON, err := json.Marshal(arms)
	if err != nil {
		return 0, eris.Wrap(err, "store: marshal arms")
	}

	now := s.now()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO waitlist (email, style, contact, arms, visitor_id, user_agent, remote_addr, client_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Email, e.Style, e.Contact, string(armsJSON), e.VisitorID, e.UserAgent, e.RemoteAddr, e.ClientTime, now.Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "store: insert waitlist entry")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "store: last insert id")
	}
	e.ID = id
	e.CreatedAt = time.Unix(now.Unix(), 0)

	var position int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM waitlist WHERE id <= ?`, id).Scan(&position); err != nil {
		return 0, eris.Wrap(err, "store: waitlist position")
	}
	return position, nil
}

func (s *SQLiteStore) ListWaitlist(ctx context.Context) ([]*WaitlistEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, style, contact, arms, visitor_id, user_agent, remote_addr, client_time, created_at
		 FROM waitlist ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list waitlist")
	}
	defer rows.Close()

	var entries []*WaitlistEntry
	for rows.Next() {
		var e WaitlistEntry
		var armsJSON string
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Email, &e.Style, &e.Contact, &armsJSON, &e.VisitorID, &e.UserAgent, &e.RemoteAddr, &e.ClientTime, &createdAt); err != nil {
			return nil, eris.Wrap(err, "store: scan waitlist entry")
		}
		if err := json.Unmarshal([]byte(armsJSON), &e.Arms); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal arms")
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, &e)
	}
	return entries, eris.Wrap(rows.Err(), "store: iterate waitlist")
}

func (s *SQLiteStore) CountWaitlist(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM waitlist`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "store: count waitlist")
	}
	return n, nil
}

// ConversionCounts tallies waitlist submissions by the value of experiment the
// submitter was assigned.
func (s *SQLiteStore) ConversionCounts(ctx context.Context, experiment string) ([]ArmCount, error) {
	path := fmt.Sprintf(`$."%s"`, experiment)
	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(json_extract(arms, ?1) AS TEXT) AS arm, COUNT(*)
		FROM waitlist
		WHERE json_extract(arms, ?1) IS NOT NULL
		GROUP BY arm
		ORDER BY arm
	`, path)
	if err != nil {
		return nil, eris.Wrap(err, "store: conversion counts")
	}
	defer rows.Close()
	return scanArmCounts(rows)
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func scanArmCounts(rows *sql.Rows) ([]ArmCount, error) {
	var counts []ArmCount
	for rows.Next() {
		var c ArmCount
		var arm sql.NullString
		if err := rows.Scan(&arm, &c.Count); err != nil {
			return nil, eris.Wrap(err, "store: scan arm count")
		}
		c.Value = arm.String
		counts = append(counts, c)
	}
	return counts, eris.Wrap(rows.Err(), "store: iterate arm counts")
}
