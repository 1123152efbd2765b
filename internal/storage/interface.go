// Package storage stages raw source records between fetching and ingestion.
// Connectors and webhook handlers write here; the ingestion pass reads the
// unprocessed records and marks them once they are in the graph.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rohankatakam/teamgraph/internal/format"
)

// Common errors
var (
	ErrUnknownDriver = errors.New("unknown staging driver")
)

// RawRecord is one staged source record
type RawRecord struct {
	ID         int64     `db:"id"`
	Source     string    `db:"source"`
	Kind       string    `db:"kind"`
	ExternalID string    `db:"external_id"`
	Payload    string    `db:"payload"`
	FetchedAt  time.Time `db:"fetched_at"`
	Processed  bool      `db:"processed"`
}

// Store defines the staging interface
type Store interface {
	// Put upserts records keyed on (source, kind, external id). A record
	// whose payload changed is flagged for reprocessing.
	Put(ctx context.Context, source string, kind format.Kind, records []format.Record) (int, error)

	// Pending returns unprocessed records grouped by kind, plus their row ids
	// for MarkProcessed. limit <= 0 means no limit.
	Pending(ctx context.Context, limit int) (format.RawBatch, []int64, error)

	// MarkProcessed flags rows as ingested
	MarkProcessed(ctx context.Context, ids []int64) error

	// PendingCounts returns unprocessed row counts per source
	PendingCounts(ctx context.Context) (map[string]int, error)

	Close() error
}
