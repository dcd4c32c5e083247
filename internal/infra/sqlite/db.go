// Package sqlite provides durable storage for the credit engine: accounts,
// credit periods, reserve accounts, fee config, and the append-only credit
// journal. Pure-Go driver, no CGO.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies all migrations.
// Use ":memory:" for an ephemeral database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	// Single writer: the engine serializes mutations anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error { return db.db.Close() }

// migrate applies the schema statements in order.
func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, stmt)
		}
	}
	return nil
}
