package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"marketsnap/internal/snapshot"
)

// SQLite persists snapshots to a SQLite database, one row per
// (symbol, as_of) holding the whole record as JSON. Replacement is always
// whole-record, matching the store's upsert semantics.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens (or creates) the database and runs migrations.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so readers are not blocked while a capture run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			symbol TEXT NOT NULL,
			as_of  TEXT NOT NULL,
			record TEXT NOT NULL,
			PRIMARY KEY (symbol, as_of)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_symbol ON snapshots(symbol)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:32], err)
		}
	}
	return nil
}

func (s *SQLite) Load() (map[string][]snapshot.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT symbol, record FROM snapshots ORDER BY symbol, as_of DESC`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := map[string][]snapshot.Snapshot{}
	for rows.Next() {
		var symbol, record string
		if err := rows.Scan(&symbol, &record); err != nil {
			return nil, err
		}
		var snap snapshot.Snapshot
		if err := json.Unmarshal([]byte(record), &snap); err != nil {
			return nil, fmt.Errorf("parse record for %s: %w", symbol, err)
		}
		out[symbol] = append(out[symbol], snap)
	}
	return out, rows.Err()
}

func (s *SQLite) Save(m map[string][]snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO snapshots (symbol, as_of, record) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for symbol, hist := range m {
		for _, snap := range hist {
			b, err := json.Marshal(snap)
			if err != nil {
				return err
			}
			if _, err := stmt.Exec(symbol, snap.AsOf, string(b)); err != nil {
				return fmt.Errorf("insert %s@%s: %w", symbol, snap.AsOf, err)
			}
		}
	}
	return tx.Commit()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
