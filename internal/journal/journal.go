// Package journal records backend invocations in a local SQLite database so
// that `sentryctl history` can show what was sent to the backend and how it ended.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"github.com/gurisko/sentryctl/internal/bridge"
	"github.com/gurisko/sentryctl/internal/limits"
	"github.com/gurisko/sentryctl/internal/logging"
)

const createTable = `
CREATE TABLE IF NOT EXISTS invocations (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	command     TEXT NOT NULL,
	args        TEXT NOT NULL,
	exit_code   INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	outcome     TEXT NOT NULL,
	message     TEXT NOT NULL
)`

const createIndex = `CREATE INDEX IF NOT EXISTS idx_invocations_started ON invocations(started_at)`

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one journaled invocation.
type Entry struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Command   string        `json:"command"`
	Args      []string      `json:"args"`
	ExitCode  int           `json:"exit_code"`
	Duration  time.Duration `json:"duration"`
	Outcome   string        `json:"outcome"`
	Message   string        `json:"message,omitempty"`
}

// Journal implements bridge.Observer.
type Journal struct {
	db  *sql.DB
	log *logging.Logger
}

// Open opens (and creates, if needed) the journal at path.
func Open(path string, log *logging.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", createTable, createIndex} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("prepare journal %s: %w", path, err)
		}
	}
	return &Journal{db: db, log: log}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Observe stores one record. Failures are logged and otherwise ignored so that
// journaling never changes the outcome of a backend call.
func (j *Journal) Observe(rec bridge.Record) {
	if err := j.Insert(context.Background(), rec); err != nil {
		j.log.Warnf("journal: %v", err)
	}
}

func (j *Journal) Insert(ctx context.Context, rec bridge.Record) error {
	args, err := json.Marshal(rec.Args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	if rec.Args == nil {
		args = []byte("[]")
	}
	msg := truncate(rec.Message, limits.JournalMessage)
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO invocations (id, started_at, command, args, exit_code, duration_ms, outcome, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.Command,
		string(args),
		rec.ExitCode,
		rec.Duration.Milliseconds(),
		rec.Outcome,
		msg,
	)
	if err != nil {
		return fmt.Errorf("insert invocation %s: %w", rec.ID, err)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Recent returns up to limit entries, newest first. A command filter of ""
// matches every command.
func (j *Journal) Recent(ctx context.Context, limit int, command string) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, started_at, command, args, exit_code, duration_ms, outcome, message
		 FROM invocations
		 WHERE ? = '' OR command = ?
		 ORDER BY started_at DESC
		 LIMIT ?`, command, command, limit)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			startedAt  string
			args       string
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &startedAt, &e.Command, &args, &e.ExitCode, &durationMS, &e.Outcome, &e.Message); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		e.StartedAt, _ = time.Parse(timeLayout, startedAt)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(args), &e.Args); err != nil {
			e.Args = []string{args}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune keeps only the newest keep entries and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM invocations WHERE id NOT IN (
			SELECT id FROM invocations ORDER BY started_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune invocations: %w", err)
	}
	return res.RowsAffected()
}
