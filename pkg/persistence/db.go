// Package persistence provides SQLite-backed storage for prompt templates,
// tags, urgency-level versions, and usage analytics.
package persistence

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Open opens (creating if necessary) the SQLite database at dbPath.
// Foreign key enforcement, WAL journaling, and the busy timeout ride on the
// DSN so every connection the pool hands out carries the same pragmas.
func Open(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database at %s: %w", dbPath, err)
	}

	// Configure connection pool for SQLite (single writer)
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	return db, nil
}

// InitializeDatabase opens the database at dbPath and brings its schema up to
// date by applying all pending embedded migrations. It is the standard entry
// point for anything that needs a ready-to-use store.
func InitializeDatabase(dbPath string) (*sql.DB, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	runner := NewRunner(db, DefaultMigrations())
	if err := runner.Initialize(false); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}
