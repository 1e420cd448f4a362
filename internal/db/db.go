// Package db is bodhi's SQLite persistence layer: settings, aliases, API
// tokens, the download queue, the MCP catalog, the app instance state
// machine, and the access-request ledger, all behind raw database/sql
// with the pure-Go modernc.org/sqlite driver. Grounded on the teacher's
// companion pack repo's pkg/db (cloudbro-kube-ai-k13d): package-level
// WAL pragma tuning and one file per table's repository, adapted from a
// package-global *sql.DB singleton to an instance-held *DB so tests can
// open independent in-memory databases concurrently.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a *sql.DB opened against bodhi's SQLite schema.
type DB struct {
	Conn *sql.DB
}

// Open opens (creating if absent) the SQLite database at path, applies
// WAL/busy-timeout pragmas for concurrent access from the server and
// download-queue worker, and runs Migrate.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if path == ":memory:" {
		// A pooled :memory: database hands out a fresh, empty database per
		// connection; pin the pool to one connection so migrations and
		// subsequent queries see the same database.
		conn.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	d := &DB{Conn: conn}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.Conn.Close()
}

// migrate creates every table bodhi's repositories need, idempotently.
func (d *DB) migrate() error {
	stmts := []string{
		settingsSchema,
		userAliasesSchema,
		apiAliasesSchema,
		apiTokensSchema,
		downloadRequestsSchema,
		mcpServersSchema,
		mcpInstancesSchema,
		mcpOAuthTokensSchema,
		toolsetsSchema,
		appToolsetConfigsSchema,
		appInstanceSchema,
		accessRequestsSchema,
	}
	for _, stmt := range stmts {
		if _, err := d.Conn.Exec(stmt); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}
