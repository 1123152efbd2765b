package storage

import (
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS raw_records (
	id BIGSERIAL PRIMARY KEY,
	source TEXT NOT NULL,
	kind TEXT NOT NULL,
	external_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL,
	processed BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (source, kind, external_id)
);
CREATE INDEX IF NOT EXISTS idx_raw_records_pending ON raw_records (processed, id);
`

// NewPostgresStore connects with the "pgx" or "postgres" (lib/pq) driver
func NewPostgresStore(driver, dsn string, logger *logrus.Logger) (*SQLStore, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(db, postgresSchema, logger)
}
