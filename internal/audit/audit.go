// Package audit keeps a SQLite journal of applied edits and of interaction
// tokens removed by the cleaner.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pstuifzand/sitetree/internal/cleaner"
	"github.com/pstuifzand/sitetree/internal/edit"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS edits (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  at TEXT NOT NULL,
  target TEXT NOT NULL,
  action TEXT NOT NULL,
  node_id TEXT NOT NULL DEFAULT '',
  revision TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS removals (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  at TEXT NOT NULL,
  pattern TEXT NOT NULL,
  document TEXT NOT NULL,
  node_id TEXT NOT NULL DEFAULT '',
  attribute TEXT NOT NULL,
  token TEXT NOT NULL,
  deleted BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_edits_target ON edits(target);
CREATE INDEX IF NOT EXISTS idx_removals_pattern ON removals(pattern);
`

// Edit is one journaled edit.
type Edit struct {
	ID       int64     `json:"id"`
	At       time.Time `json:"at"`
	Target   string    `json:"target"`
	Action   string    `json:"action"`
	NodeID   string    `json:"nodeId,omitempty"`
	Revision string    `json:"revision,omitempty"`
}

// Removal is one journaled token removal.
type Removal struct {
	ID      int64     `json:"id"`
	At      time.Time `json:"at"`
	Pattern string    `json:"pattern"`
	cleaner.Removal
}

// Journal is the audit database.
type Journal struct {
	db  *sql.DB
	now func() time.Time
	log *zap.SugaredLogger
}

// Open opens or creates the journal at path. ":memory:" keeps it in memory.
func Open(path string, log *zap.SugaredLogger) (*Journal, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// one connection: ":memory:" databases are per connection
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	log.Debugw("audit journal opened", "path", path)
	return &Journal{db: db, now: time.Now, log: log}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordEdit journals a successful edit.
func (j *Journal) RecordEdit(target string, r edit.Result) error {
	_, err := j.db.Exec(
		`INSERT INTO edits (at, target, action, node_id, revision) VALUES (?, ?, ?, ?, ?)`,
		j.stamp(), target, string(r.Action), r.NodeID, r.Revision)
	if err != nil {
		return fmt.Errorf("failed to record edit: %w", err)
	}
	return nil
}

// RecordRemovals journals the removals of one cleaning run in a single
// transaction.
func (j *Journal) RecordRemovals(pattern string, removals []cleaner.Removal) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to record removals: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO removals (at, pattern, document, node_id, attribute, token, deleted) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to record removals: %w", err)
	}
	defer stmt.Close()

	at := j.stamp()
	for _, r := range removals {
		if _, err := stmt.Exec(at, pattern, r.Document, r.NodeID, r.Attribute, r.Token, r.Deleted); err != nil {
			return fmt.Errorf("failed to record removal: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to record removals: %w", err)
	}
	return nil
}

// RecentEdits returns up to limit edits, newest first. An empty target
// returns edits of every structure.
func (j *Journal) RecentEdits(target string, limit int) ([]Edit, error) {
	rows, err := j.db.Query(
		`SELECT id, at, target, action, node_id, revision FROM edits
		 WHERE ? = '' OR target = ? ORDER BY id DESC LIMIT ?`,
		target, target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query edits: %w", err)
	}
	defer rows.Close()

	var edits []Edit
	for rows.Next() {
		var e Edit
		var at string
		if err := rows.Scan(&e.ID, &at, &e.Target, &e.Action, &e.NodeID, &e.Revision); err != nil {
			return nil, fmt.Errorf("failed to read edit: %w", err)
		}
		e.At = parseStamp(at)
		edits = append(edits, e)
	}
	return edits, rows.Err()
}

// RecentRemovals returns up to limit removals, newest first.
func (j *Journal) RecentRemovals(limit int) ([]Removal, error) {
	rows, err := j.db.Query(
		`SELECT id, at, pattern, document, node_id, attribute, token, deleted FROM removals
		 ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query removals: %w", err)
	}
	defer rows.Close()

	var removals []Removal
	for rows.Next() {
		var r Removal
		var at string
		if err := rows.Scan(&r.ID, &at, &r.Pattern, &r.Document, &r.NodeID, &r.Attribute, &r.Token, &r.Deleted); err != nil {
			return nil, fmt.Errorf("failed to read removal: %w", err)
		}
		r.At = parseStamp(at)
		removals = append(removals, r)
	}
	return removals, rows.Err()
}

func (j *Journal) stamp() string {
	return j.now().UTC().Format(time.RFC3339Nano)
}

func parseStamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
