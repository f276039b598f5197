// Package journal persists dispatched actions and process exits to SQLite
// so a run can be inspected after the fact. It is optional; the engine
// works without one.
package journal

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/felixonmars/watchexec/internal/event"
)

// Journal wraps the SQLite connection.
type Journal struct {
	conn *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	event_count INTEGER NOT NULL,
	paths TEXT NOT NULL,
	dispatched_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS exits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	exit_code INTEGER NOT NULL,
	signaled INTEGER NOT NULL,
	signal TEXT NOT NULL,
	exited_at INTEGER NOT NULL
);
`

// Open opens (and if needed initializes) a journal at path.
func Open(path string) (*Journal, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, err
	}
	return &Journal{conn: conn}, nil
}

// RecordAction stores one dispatched action.
func (j *Journal) RecordAction(ctx context.Context, jobID string, events []event.Event) error {
	paths := event.Action{Events: events}.Paths()
	_, err := j.conn.ExecContext(ctx,
		`INSERT INTO actions (job_id, event_count, paths, dispatched_at) VALUES (?, ?, ?, ?)`,
		jobID, len(events), strings.Join(paths, "\n"), time.Now().Unix())
	return err
}

// RecordExit stores one process exit.
func (j *Journal) RecordExit(ctx context.Context, jobID, runID string, status *event.ExitStatus) error {
	signaled := 0
	if status.Signaled {
		signaled = 1
	}
	_, err := j.conn.ExecContext(ctx,
		`INSERT INTO exits (job_id, run_id, exit_code, signaled, signal, exited_at) VALUES (?, ?, ?, ?, ?, ?)`,
		jobID, runID, status.Code, signaled, string(status.Signal), time.Now().Unix())
	return err
}

// ActionRecord is one row of the actions table.
type ActionRecord struct {
	JobID        string
	EventCount   int
	Paths        []string
	DispatchedAt time.Time
}

// RecentActions returns up to limit actions, newest first.
func (j *Journal) RecentActions(ctx context.Context, limit int) ([]ActionRecord, error) {
	rows, err := j.conn.QueryContext(ctx,
		`SELECT job_id, event_count, paths, dispatched_at FROM actions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ActionRecord
	for rows.Next() {
		var rec ActionRecord
		var paths string
		var at int64
		if err := rows.Scan(&rec.JobID, &rec.EventCount, &paths, &at); err != nil {
			return nil, err
		}
		if paths != "" {
			rec.Paths = strings.Split(paths, "\n")
		}
		rec.DispatchedAt = time.Unix(at, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying connection.
func (j *Journal) Close() error {
	return j.conn.Close()
}
