package embedding

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/teamgraph/internal/cache"
	"github.com/rohankatakam/teamgraph/internal/errors"
	"github.com/rohankatakam/teamgraph/internal/models"
)

// Options tune batching against the provider
type Options struct {
	BatchSize   int // inputs per provider request
	Concurrency int // provider requests in flight
}

// DefaultOptions returns 64-input batches, 4 in flight
func DefaultOptions() Options {
	return Options{BatchSize: 64, Concurrency: 4}
}

// Stats counts how vectors were obtained
type Stats struct {
	Embedded int `json:"embedded"`
	Cached   int `json:"cached"`
	Empty    int `json:"empty"`
}

// Embedder fills entity embeddings through a provider and a cache
type Embedder struct {
	provider Provider
	cache    cache.Cache
	opts     Options
	logger   *slog.Logger
}

// NewEmbedder creates an embedder. A nil cache disables caching.
func NewEmbedder(provider Provider, c cache.Cache, opts Options) *Embedder {
	if c == nil {
		c = cache.Nop{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultOptions().Concurrency
	}
	return &Embedder{
		provider: provider,
		cache:    c,
		opts:     opts,
		logger:   slog.Default().With("component", "embedder", "provider", provider.Name()),
	}
}

// Dimensions returns the provider's vector size
func (e *Embedder) Dimensions() int {
	return e.provider.Dimensions()
}

// EmbedQuery embeds a single query string
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, _, err := e.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts returns one vector per text. Empty texts get a zero vector,
// cached texts skip the provider, and identical texts are embedded once.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, Stats, error) {
	var stats Stats
	out := make([][]float32, len(texts))
	model := e.provider.Model()

	pending := make(map[string][]int)
	var order []string
	for i, t := range texts {
		if t == "" {
			out[i] = make([]float32, e.provider.Dimensions())
			stats.Empty++
			continue
		}
		if vec, ok, err := e.cache.Get(ctx, cache.EmbeddingKey(model, t)); err != nil {
			e.logger.Warn("embedding cache read failed", "error", err)
		} else if ok && len(vec) == e.provider.Dimensions() {
			out[i] = vec
			stats.Cached++
			continue
		}
		if _, seen := pending[t]; !seen {
			order = append(order, t)
		}
		pending[t] = append(pending[t], i)
	}

	if len(order) == 0 {
		return out, stats, nil
	}

	results := make([][]float32, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for start := 0; start < len(order); start += e.opts.BatchSize {
		end := start + e.opts.BatchSize
		if end > len(order) {
			end = len(order)
		}
		start, end := start, end
		g.Go(func() error {
			vecs, err := e.provider.Embed(gctx, order[start:end])
			if err != nil {
				return err
			}
			copy(results[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, errors.ExternalErrorf(err, "embed %d texts with %s", len(order), e.provider.Name())
	}

	for j, t := range order {
		for _, i := range pending[t] {
			out[i] = results[j]
		}
		if err := e.cache.Set(ctx, cache.EmbeddingKey(model, t), results[j]); err != nil {
			e.logger.Warn("embedding cache write failed", "error", err)
		}
	}
	stats.Embedded = len(order)
	return out, stats, nil
}

// EmbedDocument sets Embedding on every code change, ticket, message and
// text chunk in doc.
func (e *Embedder) EmbedDocument(ctx context.Context, doc *models.Document) (Stats, error) {
	var texts []string
	for _, c := range doc.PullRequests {
		texts = append(texts, CodeChangeText(c))
	}
	for _, t := range doc.Issues {
		texts = append(texts, TicketText(t))
	}
	for _, m := range doc.SlackMessages {
		texts = append(texts, MessageText(m))
	}
	for _, c := range doc.TextChunks {
		texts = append(texts, TextChunkText(c))
	}

	vecs, stats, err := e.EmbedTexts(ctx, texts)
	if err != nil {
		return stats, err
	}

	i := 0
	for k := range doc.PullRequests {
		doc.PullRequests[k].Embedding = vecs[i]
		i++
	}
	for k := range doc.Issues {
		doc.Issues[k].Embedding = vecs[i]
		i++
	}
	for k := range doc.SlackMessages {
		doc.SlackMessages[k].Embedding = vecs[i]
		i++
	}
	for k := range doc.TextChunks {
		doc.TextChunks[k].Embedding = vecs[i]
		i++
	}

	e.logger.Info("document embedded",
		"embedded", stats.Embedded,
		"cached", stats.Cached,
		"empty", stats.Empty)
	return stats, nil
}
