package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			external_id TEXT,
			kind TEXT NOT NULL,
			phone_number TEXT NOT NULL,
			direction TEXT NOT NULL,
			status TEXT NOT NULL,
			duration INTEGER DEFAULT 0,
			content TEXT,
			attachments TEXT,
			notes TEXT,
			occurred_at DATETIME NOT NULL,
			end_time DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		// Indexes that keep the default owner-scoped listing and the
		// common lookups efficient
		`CREATE INDEX IF NOT EXISTS idx_records_user_occurred ON records(user_id, occurred_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_records_phone ON records(phone_number)`,
		`CREATE INDEX IF NOT EXISTS idx_records_status ON records(status)`,
		`CREATE INDEX IF NOT EXISTS idx_records_external ON records(external_id) WHERE external_id IS NOT NULL`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
