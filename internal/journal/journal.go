// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package journal records server sessions and the calls made on them in
// a SQLite database.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/luxfi/objrpc/objerr"
)

//go:embed schema.sql
var schemaSQL string

// Journal is safe for concurrent use.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Session is one journaled connection.
type Session struct {
	ID       string
	Remote   string
	OpenedAt time.Time
	ClosedAt time.Time // zero while open
	Calls    int
}

// Open reports whether the session has not been closed.
func (s Session) Open() bool { return s.ClosedAt.IsZero() }

// Call is one journaled request.
type Call struct {
	Seq       int64
	SessionID string
	Op        string
	Target    string
	Elapsed   time.Duration
	ErrorKind string
	ErrorMsg  string
}

// Failed reports whether the call returned an error.
func (c Call) Failed() bool { return c.ErrorKind != "" }

// Open creates or opens the journal at path. ":memory:" keeps it in
// memory for the life of the Journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}
	// SQLite has one writer; a single connection also keeps ":memory:"
	// databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) exec(query string, args ...any) error {
	_, err := j.db.Exec(query, args...)
	return err
}

// OpenSession records a new session. Reopening a known id is a no-op.
func (j *Journal) OpenSession(id, remote string) error {
	err := j.exec(`
		INSERT INTO sessions (id, remote, opened_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, remote, j.now().UnixNano())
	if err != nil {
		return fmt.Errorf("open session %s: %w", id, err)
	}
	return nil
}

// CloseSession stamps the session closed. Closing twice keeps the first
// timestamp.
func (j *Journal) CloseSession(id string) error {
	err := j.exec(`UPDATE sessions SET closed_at = ? WHERE id = ? AND closed_at IS NULL`,
		j.now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}
	return nil
}

// RecordCall appends a call to session. A non-nil err is stored with its
// objerr kind.
func (j *Journal) RecordCall(session, op, target string, elapsed time.Duration, err error) error {
	var kind, msg string
	if err != nil {
		kind, msg = objerr.KindOf(err).String(), err.Error()
	}
	if werr := j.exec(`
		INSERT INTO calls (session_id, op, target, elapsed_ns, error_kind, error_msg)
		VALUES (?, ?, ?, ?, ?, ?)
	`, session, op, target, int64(elapsed), kind, msg); werr != nil {
		return fmt.Errorf("record %s call: %w", op, werr)
	}
	return nil
}

// Sessions lists sessions, most recently opened first, with their call
// counts. limit <= 0 means no limit.
func (j *Journal) Sessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.id, s.remote, s.opened_at, s.closed_at, COUNT(c.seq)
		FROM sessions s LEFT JOIN calls c ON c.session_id = s.id
		GROUP BY s.id
		ORDER BY s.opened_at DESC, s.id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s      Session
			opened int64
			closed sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Remote, &opened, &closed, &s.Calls); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.OpenedAt = time.Unix(0, opened)
		if closed.Valid {
			s.ClosedAt = time.Unix(0, closed.Int64)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Calls lists the calls of session in the order they were made.
func (j *Journal) Calls(ctx context.Context, session string) ([]Call, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, session_id, op, target, elapsed_ns, error_kind, error_msg
		FROM calls WHERE session_id = ? ORDER BY seq
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		var (
			c  Call
			ns int64
		)
		if err := rows.Scan(&c.Seq, &c.SessionID, &c.Op, &c.Target, &ns, &c.ErrorKind, &c.ErrorMsg); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		c.Elapsed = time.Duration(ns)
		out = append(out, c)
	}
	return out, rows.Err()
}
