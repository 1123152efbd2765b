package graph

import (
	"context"
	"log/slog"
	"sort"

	"github.com/rohankatakam/teamgraph/internal/errors"
	"github.com/rohankatakam/teamgraph/internal/models"
)

// Summary counts what one import wrote. Node counts are keyed by label,
// edge counts by "From-TYPE->To" description.
type Summary struct {
	Nodes map[string]int `json:"nodes"`
	Edges map[string]int `json:"edges"`
}

// TotalNodes sums node counts
func (s Summary) TotalNodes() int {
	n := 0
	for _, v := range s.Nodes {
		n += v
	}
	return n
}

// TotalEdges sums edge counts
func (s Summary) TotalEdges() int {
	n := 0
	for _, v := range s.Edges {
		n += v
	}
	return n
}

// Writer imports a formatted document and its derived edges into a Store
type Writer struct {
	store  Store
	logger *slog.Logger
}

// NewWriter creates a writer over store
func NewWriter(store Store) *Writer {
	return &Writer{
		store:  store,
		logger: slog.Default().With("component", "graph_writer"),
	}
}

// Import ensures constraints, then merges nodes label by label, then edges.
// Constraint failure aborts before any node is written.
func (w *Writer) Import(ctx context.Context, doc *models.Document, edges []models.Edge) (Summary, error) {
	summary := Summary{Nodes: make(map[string]int), Edges: make(map[string]int)}

	if err := w.store.EnsureConstraints(ctx, models.AllLabels); err != nil {
		return summary, errors.StoreError(err, "ensure uniqueness constraints")
	}

	nodes := doc.Nodes()
	for _, label := range models.AllLabels {
		batch := nodes[label]
		if len(batch) == 0 {
			continue
		}
		n, err := w.store.UpsertNodes(ctx, label, batch)
		if err != nil {
			return summary, err
		}
		summary.Nodes[string(label)] = n
		w.logger.Info("nodes imported", "label", label, "count", n)
	}

	byDesc := make(map[string][]models.Edge)
	for _, e := range edges {
		byDesc[e.Description()] = append(byDesc[e.Description()], e)
	}
	descs := make([]string, 0, len(byDesc))
	for d := range byDesc {
		descs = append(descs, d)
	}
	sort.Strings(descs)

	for _, d := range descs {
		n, err := w.store.UpsertEdges(ctx, byDesc[d])
		if err != nil {
			return summary, err
		}
		summary.Edges[d] = n
		if dropped := len(byDesc[d]) - n; dropped > 0 {
			w.logger.Warn("edges skipped for missing endpoints", "relationship", d, "skipped", dropped)
		}
	}

	w.logger.Info("import complete",
		"nodes", summary.TotalNodes(),
		"edges", summary.TotalEdges())
	return summary, nil
}

// EnsureVectorIndexes creates one vector index per embedded label
func (w *Writer) EnsureVectorIndexes(ctx context.Context, dimensions int) error {
	for _, label := range models.EmbeddedLabels {
		if err := w.store.EnsureVectorIndex(ctx, label, dimensions); err != nil {
			return err
		}
	}
	return nil
}
