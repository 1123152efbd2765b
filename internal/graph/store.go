// Package graph writes canonical entities and their relationships to the
// graph store and serves vector searches over embedded nodes.
package graph

import (
	"context"

	"github.com/rohankatakam/teamgraph/internal/models"
)

// Store is the graph store contract. Every write is a merge keyed on node id
// (nodes) or on the (from, to, type) triple (edges), so repeating a write
// leaves the store unchanged.
type Store interface {
	// UpsertNode merges on id and replaces every other property
	UpsertNode(ctx context.Context, node models.Node) error

	// UpsertNodes merges a batch of nodes sharing one label
	UpsertNodes(ctx context.Context, label models.Label, nodes []models.Node) (int, error)

	// UpsertEdge merges on (from, to, type) and updates edge properties in
	// place. Missing endpoints make it a no-op.
	UpsertEdge(ctx context.Context, edge models.Edge) error

	// UpsertEdges merges a batch of edges and returns how many matched both
	// endpoints
	UpsertEdges(ctx context.Context, edges []models.Edge) (int, error)

	// EnsureConstraints creates a uniqueness constraint on id for each label
	EnsureConstraints(ctx context.Context, labels []models.Label) error

	// EnsureVectorIndex creates a cosine vector index on the embedding
	// property of label
	EnsureVectorIndex(ctx context.Context, label models.Label, dimensions int) error

	// VectorSearch returns the k nodes of label closest to vector
	VectorSearch(ctx context.Context, label models.Label, vector []float32, k int) ([]Hit, error)

	// CountEmbedded counts nodes carrying an embedding, per label
	CountEmbedded(ctx context.Context, labels []models.Label) (map[models.Label]int, error)

	// Totals counts all nodes per label and all relationships per type
	Totals(ctx context.Context) (Totals, error)

	// Clear deletes every node and relationship. Maintenance only.
	Clear(ctx context.Context) error

	Close(ctx context.Context) error
}

// Hit is one vector search result. Properties exclude the embedding.
type Hit struct {
	Label      models.Label
	ID         string
	Score      float64
	Properties map[string]any
}

// Totals is a snapshot of store contents
type Totals struct {
	Nodes         map[models.Label]int
	Relationships map[models.RelType]int
}
