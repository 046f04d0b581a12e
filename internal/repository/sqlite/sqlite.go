// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: one file, no server to run. It is the
// default store for single-instance deployments and for tests (":memory:").
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without CGo and cross-compiles cleanly.
//
// MERGE SEMANTICS:
// The users table keeps every counter NOT NULL DEFAULT 0, so a row created by
// any code path already has all counters present. Partial writes are
// expressed as INSERT ... ON CONFLICT(username) DO UPDATE SET <only the
// columns being written>, which is SQLite's merge-write.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/gitpoints/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/gitpoints.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand new, empty database, so
	// the pool must never grow beyond the connection that ran the migrations.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// dsn appends per-connection pragmas. A PRAGMA run with conn.Exec would only
// reach one connection of the pool; _pragma parameters are applied by the
// driver to every connection it opens.
//
//   - journal_mode(WAL): readers (leaderboard) run while a merge is writing
//   - busy_timeout(5000): concurrent check-ins queue on the write lock
//     instead of failing with SQLITE_BUSY
func dsn(dbPath string) string {
	if dbPath == ":memory:" {
		return dbPath
	}
	return dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			username        TEXT PRIMARY KEY,
			id              TEXT NOT NULL DEFAULT '',
			display_name    TEXT NOT NULL DEFAULT '',
			avatar_url      TEXT NOT NULL DEFAULT '',
			access_token    TEXT NOT NULL DEFAULT '',
			points          INTEGER NOT NULL DEFAULT 0,
			repo_count      INTEGER NOT NULL DEFAULT 0,
			commit_count    INTEGER NOT NULL DEFAULT 0,
			daily_check_ins INTEGER NOT NULL DEFAULT 0,
			last_login      TEXT,
			last_updated    TEXT,
			last_check_in   TEXT,
			last_full_scan  TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_users_points ON users(points DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}
	return nil
}
