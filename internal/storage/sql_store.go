package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/teamgraph/internal/format"
)

// SQLStore implements Store on any sqlx driver; the dialects differ only in
// schema and bind variables.
type SQLStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
	now    func() time.Time
}

var _ Store = (*SQLStore)(nil)

// Open connects with driver ("sqlite3", "postgres" or "pgx") and creates the
// schema if needed.
func Open(driver, dsn string, logger *logrus.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	switch driver {
	case "sqlite3", "sqlite":
		return NewSQLiteStore(dsn, logger)
	case "postgres", "pgx":
		return NewPostgresStore(driver, dsn, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func newSQLStore(db *sqlx.DB, schema string, logger *logrus.Logger) (*SQLStore, error) {
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLStore{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

const upsertRecord = `
	INSERT INTO raw_records (source, kind, external_id, payload, fetched_at, processed)
	VALUES (?, ?, ?, ?, ?, FALSE)
	ON CONFLICT (source, kind, external_id) DO UPDATE SET
		payload = excluded.payload,
		fetched_at = excluded.fetched_at,
		processed = CASE WHEN raw_records.payload = excluded.payload
			THEN raw_records.processed ELSE FALSE END
`

// externalID picks the record's natural key: id, else channel/ts for
// messages, else a hash of the payload.
func externalID(r format.Record, payload []byte) string {
	if id := r.String("id"); id != "" {
		return id
	}
	if ts := r.String("ts"); ts != "" {
		return r.String("channel") + "/" + ts
	}
	sum := sha256.Sum256(payload)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Put upserts records in one transaction
func (s *SQLStore) Put(ctx context.Context, source string, kind format.Kind, records []format.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin staging transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.db.Rebind(upsertRecord)
	fetchedAt := s.now().UTC()
	for _, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("encode %s record: %w", kind, err)
		}
		if _, err := tx.ExecContext(ctx, query, source, string(kind), externalID(r, payload), string(payload), fetchedAt); err != nil {
			return 0, fmt.Errorf("stage %s %s record: %w", source, kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit staging transaction: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"source": source,
		"kind":   kind,
		"count":  len(records),
	}).Debug("Staged raw records")
	return len(records), nil
}

// Pending returns unprocessed records in insertion order
func (s *SQLStore) Pending(ctx context.Context, limit int) (format.RawBatch, []int64, error) {
	query := `SELECT id, source, kind, external_id, payload, fetched_at, processed
		FROM raw_records WHERE processed = FALSE ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []RawRecord
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, nil, fmt.Errorf("query pending records: %w", err)
	}

	batch := format.RawBatch{}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		var rec format.Record
		if err := json.Unmarshal([]byte(row.Payload), &rec); err != nil {
			// returned in ids so it is marked processed with the rest
			s.logger.WithError(err).WithField("id", row.ID).Warn("Skipping undecodable staged record")
			ids = append(ids, row.ID)
			continue
		}
		batch.Add(format.Kind(row.Kind), rec)
		ids = append(ids, row.ID)
	}
	return batch, ids, nil
}

// MarkProcessed flags rows as ingested
func (s *SQLStore) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE raw_records SET processed = TRUE WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("build mark-processed query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("mark %d records processed: %w", len(ids), err)
	}
	return nil
}

// PendingCounts returns unprocessed row counts per source
func (s *SQLStore) PendingCounts(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Source string `db:"source"`
		Count  int    `db:"count"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT source, COUNT(*) AS count FROM raw_records WHERE processed = FALSE GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("count pending records: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Source] = r.Count
	}
	return out, nil
}
