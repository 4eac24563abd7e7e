// Package store provides an optional, strictly non-authoritative
// diagnostic database backed by embedded SQLite. It never gates live
// protocol behavior: the presence registry and room table are always
// the source of truth in memory, and nothing is read back from here on
// startup. Store exists purely so an operator can inspect login/logout
// history and a point-in-time roster after the fact.
//
// Migration design: SQL statements are kept in the [migrations] slice as
// ordered strings. Each is applied exactly once; the applied version is
// tracked in the schema_migrations table. To add a migration, append a new
// string — never edit or reorder existing entries.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "modernc.org/sqlite"
)

var migrations = []string{
	// v1 — audit log of presence events (login, logout, reap)
	`CREATE TABLE IF NOT EXISTS audit_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		action     TEXT NOT NULL,
		user_id    TEXT NOT NULL DEFAULT '',
		detail     TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v2 — point-in-time roster snapshots, one row per broadcast
	`CREATE TABLE IF NOT EXISTS roster_snapshots (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		roster     TEXT NOT NULL,
		user_count INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v3 — indexes for the diagnostic read paths
	`CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at)`,
	// v4 — enable WAL mode
	`PRAGMA journal_mode=WAL`,
}

// maxAuditRows bounds the audit_log table so an unattended server does
// not grow it without limit (§7 Resource-overflow applied to disk, not
// just memory).
const maxAuditRows = 10000

// Store wraps a SQLite database used only for diagnostics.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at path and applies any
// pending migrations. Use ":memory:" for ephemeral in-process storage
// (tests).
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		log.Printf("[store] WAL mode: %v (non-fatal)", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		log.Printf("[store] busy_timeout: %v (non-fatal)", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.Exec(
			`INSERT INTO schema_migrations(version) VALUES(?)`, v,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		log.Printf("[store] applied migration v%d", v)
	}
	return nil
}

// AuditEntry is one row of the audit_log table.
type AuditEntry struct {
	ID        int64
	Action    string
	UserID    string
	Detail    string
	CreatedAt int64
}

// InsertAuditEvent records one presence event and purges entries beyond
// maxAuditRows.
func (s *Store) InsertAuditEvent(action, userID, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO audit_log(action, user_id, detail) VALUES(?, ?, ?)`,
		action, userID, detail,
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`DELETE FROM audit_log WHERE id NOT IN (SELECT id FROM audit_log ORDER BY id DESC LIMIT ?)`,
		maxAuditRows,
	)
	return err
}

// RecentAuditEvents returns the most recent audit events, newest first,
// optionally filtered by action ("" for all).
func (s *Store) RecentAuditEvents(action string, limit int) ([]AuditEntry, error) {
	var rows *sql.Rows
	var err error
	if action != "" {
		rows, err = s.db.Query(
			`SELECT id, action, user_id, detail, created_at FROM audit_log WHERE action = ? ORDER BY id DESC LIMIT ?`,
			action, limit,
		)
	} else {
		rows, err = s.db.Query(
			`SELECT id, action, user_id, detail, created_at FROM audit_log ORDER BY id DESC LIMIT ?`,
			limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.UserID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RosterSnapshot is one row of the roster_snapshots table: a serialized
// roster as it stood at CreatedAt. It carries no authority — it is
// never read back into a live Presence registry.
type RosterSnapshot struct {
	ID        int64
	RosterRaw string
	UserCount int
	CreatedAt int64
}

// SaveRosterSnapshot serializes roster to JSON and records it. roster
// may be any JSON-marshalable slice of roster entries; Store does not
// depend on the caller's concrete roster type.
func (s *Store) SaveRosterSnapshot(roster any) error {
	raw, err := json.Marshal(roster)
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}
	count := jsonArrayLen(raw)
	_, err = s.db.Exec(
		`INSERT INTO roster_snapshots(roster, user_count) VALUES(?, ?)`,
		string(raw), count,
	)
	return err
}

// LatestRosterSnapshot returns the most recent roster snapshot, or
// sql.ErrNoRows if none has ever been saved.
func (s *Store) LatestRosterSnapshot() (RosterSnapshot, error) {
	var r RosterSnapshot
	err := s.db.QueryRow(
		`SELECT id, roster, user_count, created_at FROM roster_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&r.ID, &r.RosterRaw, &r.UserCount, &r.CreatedAt)
	return r, err
}

// Optimize runs PRAGMA optimize for the SQLite query planner.
func (s *Store) Optimize() error {
	_, err := s.db.Exec(`PRAGMA optimize`)
	return err
}

// jsonArrayLen counts the top-level elements of a JSON array without
// needing the caller's concrete element type.
func jsonArrayLen(raw []byte) int {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return 0
	}
	return len(elems)
}
