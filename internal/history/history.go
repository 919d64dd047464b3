// Package history journals every external tool invocation to SQLite so an
// operator can audit what ran against the machine's storage and how it went.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/jfarrand/diskwright/internal/cmdexec"
)

// Compile-time interface guard.
var _ cmdexec.Recorder = (*Journal)(nil)

// Entry is one journaled invocation.
type Entry struct {
	ID       string    `json:"id"`
	Argv     []string  `json:"argv"`
	ExitCode int       `json:"exit_code"`
	Success  bool      `json:"success"`
	Output   string    `json:"output,omitempty"`
	Started  time.Time `json:"started"`
	Duration float64   `json:"duration_seconds"`
}

// Journal persists invocation records. Record failures are logged, never
// propagated: journaling must not fail a storage operation that already
// succeeded.
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS invocations (
	id          TEXT PRIMARY KEY,
	argv        TEXT NOT NULL,
	exit_code   INTEGER NOT NULL,
	success     INTEGER NOT NULL,
	output      TEXT NOT NULL DEFAULT '',
	started     TEXT NOT NULL,
	duration_s  REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invocations_started ON invocations(started);
`

// Open opens (or creates) the journal database at path.
func Open(path string, logger *zap.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// SQLite performs best with a single write connection. WAL enables concurrent readers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// modernc.org/sqlite wants pragmas as SQL statements, not DSN params.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &Journal{db: db, logger: logger}, nil
}

// Record journals one invocation.
func (j *Journal) Record(ctx context.Context, inv cmdexec.Invocation) {
	argv, err := json.Marshal(inv.Argv)
	if err != nil {
		j.logger.Warn("journal: marshal argv", zap.Error(err))
		return
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO invocations (id, argv, exit_code, success, output, started, duration_s)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, string(argv), inv.ExitCode, inv.Success, inv.Output,
		inv.Started.UTC().Format(time.RFC3339Nano), inv.Duration.Seconds(),
	)
	if err != nil {
		j.logger.Warn("journal: insert invocation",
			zap.String("id", inv.ID),
			zap.Error(err),
		)
	}
}

// List returns the most recent entries, newest first, at most limit of
// them. limit <= 0 selects a reasonable default.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, argv, exit_code, success, output, started, duration_s
		 FROM invocations ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			argv    string
			started string
		)
		if err := rows.Scan(&e.ID, &argv, &e.ExitCode, &e.Success, &e.Output, &started, &e.Duration); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		if err := json.Unmarshal([]byte(argv), &e.Argv); err != nil {
			return nil, fmt.Errorf("journal entry %s: decode argv: %w", e.ID, err)
		}
		if e.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("journal entry %s: decode timestamp: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}
