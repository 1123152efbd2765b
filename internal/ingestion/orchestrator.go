package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/teamgraph/internal/dedup"
	"github.com/rohankatakam/teamgraph/internal/embedding"
	"github.com/rohankatakam/teamgraph/internal/format"
	"github.com/rohankatakam/teamgraph/internal/graph"
	"github.com/rohankatakam/teamgraph/internal/identity"
	"github.com/rohankatakam/teamgraph/internal/linking"
	"github.com/rohankatakam/teamgraph/internal/metrics"
	"github.com/rohankatakam/teamgraph/internal/models"
	"github.com/rohankatakam/teamgraph/internal/storage"
)

// Options controls one ingestion pass
type Options struct {
	// ClearFirst deletes every node and relationship before importing
	ClearFirst bool
	// CreateIndexes creates one vector index per embedded label
	CreateIndexes bool
	// IncludeAllMessages keeps channel-join notifications
	IncludeAllMessages bool
	// Embed fills embeddings before import; requires an embedder
	Embed bool
}

// Orchestrator coordinates one batch pass from formatted document to graph
type Orchestrator struct {
	store    graph.Store
	writer   *graph.Writer
	linker   *linking.Linker
	xref     *identity.CrossReference
	embedder *embedding.Embedder
	staging  storage.Store
	logger   *logrus.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithCrossReference sets the identity table used to link handles to people
func WithCrossReference(xref *identity.CrossReference) Option {
	return func(o *Orchestrator) { o.xref = xref }
}

// WithEmbedder sets the embedder used when Options.Embed is set
func WithEmbedder(e *embedding.Embedder) Option {
	return func(o *Orchestrator) { o.embedder = e }
}

// WithStaging sets the raw-record store read by IngestStaged
func WithStaging(s storage.Store) Option {
	return func(o *Orchestrator) { o.staging = s }
}

// NewOrchestrator creates a new ingestion orchestrator
func NewOrchestrator(store graph.Store, logger *logrus.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	o := &Orchestrator{
		store:  store,
		writer: graph.NewWriter(store),
		linker: linking.NewLinker(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result contains the results of an ingestion
type Result struct {
	Summary       graph.Summary
	Format        *format.Stats
	Identity      identity.Stats
	Dedup         dedup.Stats
	Embedding     embedding.Stats
	LinkCounts    map[string]int
	LinkSkipped   map[string]int
	JoinsFiltered int
	Dropped       map[models.Label]int // entities without an id, by label
	Processed     int // staged rows marked processed
	Duration      time.Duration
}

// IngestDocument prepares doc and writes it to the store. Store failures
// abort the pass; writes already made are left in place since every write
// is an idempotent merge.
func (o *Orchestrator) IngestDocument(ctx context.Context, doc *models.Document, opts Options) (*Result, error) {
	start := time.Now()
	done := metrics.Time("ingest")
	result := &Result{}

	if opts.Embed && o.embedder == nil {
		done(false)
		return nil, fmt.Errorf("embedding requested but no embedder configured")
	}

	prepared := o.Prepare(doc, opts, result)

	if opts.Embed {
		stats, err := o.embedder.EmbedDocument(ctx, prepared)
		if err != nil {
			done(false)
			return nil, err
		}
		result.Embedding = stats
		o.logger.WithFields(logrus.Fields{
			"embedded": stats.Embedded,
			"cached":   stats.Cached,
			"empty":    stats.Empty,
		}).Info("Embeddings computed")
	}

	if opts.ClearFirst {
		if err := o.store.Clear(ctx); err != nil {
			done(false)
			return nil, err
		}
		o.logger.Warn("Graph cleared before import")
	}

	links := o.linker.Link(prepared)
	result.LinkCounts = links.Counts
	result.LinkSkipped = links.Skipped

	summary, err := o.writer.Import(ctx, prepared, links.Edges)
	result.Summary = summary
	if err != nil {
		done(false)
		return result, err
	}
	metrics.Default().ObserveIngest(summary.Nodes, summary.Edges)

	if opts.CreateIndexes {
		dims := embedding.DefaultDimensions
		if o.embedder != nil {
			dims = o.embedder.Dimensions()
		}
		if err := o.writer.EnsureVectorIndexes(ctx, dims); err != nil {
			done(false)
			return result, err
		}
		o.logger.WithField("dimensions", dims).Info("Vector indexes ensured")
	}

	result.Duration = time.Since(start)
	done(true)

	o.logger.WithFields(logrus.Fields{
		"nodes":    summary.TotalNodes(),
		"edges":    summary.TotalEdges(),
		"skipped":  sumCounts(links.Skipped),
		"duration": result.Duration.Round(time.Millisecond),
	}).Info("Ingestion complete")
	return result, nil
}

// Prepare returns the document that will be written: entities without an
// id dropped, join notifications filtered (unless kept), identities
// resolved, messages deduplicated and thread-ordered. doc itself is not
// modified.
func (o *Orchestrator) Prepare(doc *models.Document, opts Options, result *Result) *models.Document {
	filtered := o.dropMalformed(doc, result)
	if !opts.IncludeAllMessages {
		messages := filtered.SlackMessages
		filtered.SlackMessages = make([]models.Message, 0, len(messages))
		for _, m := range messages {
			if format.IsJoinMessage(m.Text) {
				result.JoinsFiltered++
				continue
			}
			filtered.SlackMessages = append(filtered.SlackMessages, m)
		}
	}

	normalizer := identity.NewNormalizer(o.xref, filtered.Users)
	enriched, idStats := normalizer.EnrichDocument(&filtered)
	result.Identity = idStats

	messages, dedupStats := dedup.MessagesWithStats(enriched.SlackMessages)
	enriched.SlackMessages = messages
	result.Dedup = dedupStats

	o.logger.WithFields(logrus.Fields{
		"people_linked":       idStats.PeopleLinked,
		"messages_resolved":   idStats.MessagesResolved,
		"messages_unresolved": idStats.MessagesUnresolved,
		"duplicates":          dedupStats.Collapsed,
		"joins_filtered":      result.JoinsFiltered,
		"dropped":             sumCounts(result.Dropped),
	}).Info("Document prepared")
	return enriched
}

// dropMalformed returns a copy of doc without entities that have no id.
// Each drop is logged and counted per label.
func (o *Orchestrator) dropMalformed(doc *models.Document, result *Result) models.Document {
	out := *doc
	result.Dropped = make(map[models.Label]int)
	drop := func(label models.Label, index int) {
		result.Dropped[label]++
		o.logger.WithFields(logrus.Fields{
			"label": label,
			"index": index,
		}).Warn("Dropping record without id")
	}

	out.Users = keepWithID(doc.Users, func(p models.Person) string { return p.ID }, models.LabelPerson, drop)
	out.Repositories = keepWithID(doc.Repositories, func(r models.Repository) string { return r.ID }, models.LabelRepository, drop)
	out.PullRequests = keepWithID(doc.PullRequests, func(c models.CodeChange) string { return c.ID }, models.LabelCodeChange, drop)
	out.Issues = keepWithID(doc.Issues, func(t models.Ticket) string { return t.ID }, models.LabelTicket, drop)
	out.SlackChannels = keepWithID(doc.SlackChannels, func(c models.Channel) string { return c.ID }, models.LabelChannel, drop)
	out.SlackMessages = keepWithID(doc.SlackMessages, func(m models.Message) string { return m.ID }, models.LabelMessage, drop)
	out.TextChunks = keepWithID(doc.TextChunks, func(c models.TextChunk) string { return c.ID }, models.LabelTextChunk, drop)
	return out
}

func keepWithID[T any](in []T, id func(T) string, label models.Label, drop func(models.Label, int)) []T {
	out := make([]T, 0, len(in))
	for i, v := range in {
		if strings.TrimSpace(id(v)) == "" {
			drop(label, i)
			continue
		}
		out = append(out, v)
	}
	return out
}

// IngestRaw formats raw source records and ingests the result
func (o *Orchestrator) IngestRaw(ctx context.Context, batch format.RawBatch, opts Options) (*Result, error) {
	doc, stats := format.FormatAll(batch)
	result, err := o.IngestDocument(ctx, doc, opts)
	if result != nil {
		result.Format = &stats
	}
	return result, err
}

// IngestStaged ingests up to limit pending staged records (0 for all) and
// marks them processed once the import succeeded.
func (o *Orchestrator) IngestStaged(ctx context.Context, limit int, opts Options) (*Result, error) {
	if o.staging == nil {
		return nil, fmt.Errorf("no staging store configured")
	}

	batch, ids, err := o.staging.Pending(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		o.logger.Info("No pending staged records")
		return &Result{}, nil
	}
	o.logger.WithField("records", len(ids)).Info("Ingesting staged records")

	result, err := o.IngestRaw(ctx, batch, opts)
	if err != nil {
		return result, err
	}
	if err := o.staging.MarkProcessed(ctx, ids); err != nil {
		return result, err
	}
	result.Processed = len(ids)
	return result, nil
}

func sumCounts[K comparable](m map[K]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
