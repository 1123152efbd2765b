package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/teamgraph/internal/format"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	s, err := Open("sqlite3", filepath.Join(t.TempDir(), "staging", "raw.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndPending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.Put(ctx, "github", format.KindPullRequest, []format.Record{
		{"id": float64(101), "number": float64(7), "title": "Add OAuth"},
		{"id": float64(102), "number": float64(8), "title": "Fix login"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Put(ctx, "slack", format.KindMessage, []format.Record{
		{"ts": "1745704536.966429", "channel": "C1", "text": "hi"},
	})
	require.NoError(t, err)

	batch, ids, err := s.Pending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	require.Len(t, batch[format.KindPullRequest], 2)
	assert.Equal(t, "Add OAuth", batch[format.KindPullRequest][0].String("title"))
	assert.Equal(t, "101", batch[format.KindPullRequest][0].String("id"))
	assert.Len(t, batch[format.KindMessage], 1)

	counts, err := s.PendingCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"github": 2, "slack": 1}, counts)
}

func TestPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rec := []format.Record{{"id": "R1", "full_name": "acme/core"}}

	_, err := s.Put(ctx, "github", format.KindRepository, rec)
	require.NoError(t, err)
	_, ids, err := s.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.NoError(t, s.MarkProcessed(ctx, ids))

	// same payload again: stays processed
	_, err = s.Put(ctx, "github", format.KindRepository, rec)
	require.NoError(t, err)
	_, ids, err = s.Pending(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// changed payload: pending again, still one row
	_, err = s.Put(ctx, "github", format.KindRepository, []format.Record{{"id": "R1", "full_name": "acme/core2"}})
	require.NoError(t, err)
	batch, ids, err := s.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "acme/core2", batch[format.KindRepository][0].String("full_name"))
}

func TestPendingLimitAndMarkProcessed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var recs []format.Record
	for i := 0; i < 5; i++ {
		recs = append(recs, format.Record{"id": float64(i + 1)})
	}
	_, err := s.Put(ctx, "github", format.KindIssue, recs)
	require.NoError(t, err)

	_, ids, err := s.Pending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.NoError(t, s.MarkProcessed(ctx, ids))

	_, rest, err := s.Pending(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, rest, 3)

	assert.NoError(t, s.MarkProcessed(ctx, nil))
}

func TestExternalID(t *testing.T) {
	assert.Equal(t, "42", externalID(format.Record{"id": float64(42)}, nil))
	assert.Equal(t, "C1/1.5", externalID(format.Record{"ts": "1.5", "channel": "C1"}, nil))

	a := externalID(format.Record{}, []byte(`{"x":1}`))
	b := externalID(format.Record{}, []byte(`{"x":2}`))
	assert.NotEqual(t, a, b)
}

func TestPutStampsFetchTime(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fixed := time.Date(2025, 4, 26, 21, 55, 36, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	_, err := s.Put(ctx, "github", format.KindContributor, []format.Record{{"id": "U1"}})
	require.NoError(t, err)

	var got []RawRecord
	require.NoError(t, s.db.SelectContext(ctx, &got, `SELECT * FROM raw_records`))
	require.Len(t, got, 1)
	assert.True(t, fixed.Equal(got[0].FetchedAt))
	assert.False(t, got[0].Processed)
	assert.Equal(t, "U1", got[0].ExternalID)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x", nil)
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
