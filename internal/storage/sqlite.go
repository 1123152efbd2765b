package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS raw_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	kind TEXT NOT NULL,
	external_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	fetched_at DATETIME NOT NULL,
	processed BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (source, kind, external_id)
);
CREATE INDEX IF NOT EXISTS idx_raw_records_pending ON raw_records (processed, id);
`

// NewSQLiteStore opens a local staging database (for single-machine use)
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// one writer at a time; WAL lets readers proceed
	db.SetMaxOpenConns(1)
	db.Exec("PRAGMA journal_mode = WAL")

	return newSQLStore(db, sqliteSchema, logger)
}
