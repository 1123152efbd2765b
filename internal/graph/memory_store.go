package graph

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rohankatakam/teamgraph/internal/errors"
	"github.com/rohankatakam/teamgraph/internal/models"
)

// MemoryStore is an in-process Store with the same merge semantics as
// Neo4jStore. Used by tests and dry runs.
type MemoryStore struct {
	mu          sync.RWMutex
	nodes       map[models.Label]map[string]map[string]any
	edges       map[string]memoryEdge
	constraints map[string]bool
	indexes     map[models.Label]int

	// FailConstraints makes EnsureConstraints fail, to exercise the fatal
	// path in callers.
	FailConstraints bool
}

type memoryEdge struct {
	edge  models.Edge
	props map[string]any
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:       make(map[models.Label]map[string]map[string]any),
		edges:       make(map[string]memoryEdge),
		constraints: make(map[string]bool),
		indexes:     make(map[models.Label]int),
	}
}

func (m *MemoryStore) upsertNode(node models.Node) error {
	if node.ID == "" {
		return fmt.Errorf("node of label %s has no id", node.Label)
	}
	if !isValidIdentifier(string(node.Label)) {
		return fmt.Errorf("invalid node label %q", node.Label)
	}
	props := make(map[string]any, len(node.Properties)+1)
	for k, v := range node.Properties {
		props[k] = v
	}
	props["id"] = node.ID

	byID, ok := m.nodes[node.Label]
	if !ok {
		byID = make(map[string]map[string]any)
		m.nodes[node.Label] = byID
	}
	byID[node.ID] = props
	return nil
}

// UpsertNode merges on id and replaces the property set
func (m *MemoryStore) UpsertNode(_ context.Context, node models.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.upsertNode(node); err != nil {
		return errors.ValidationErrorf("upsert node: %v", err)
	}
	return nil
}

// UpsertNodes merges nodes of one label; nodes without an id are skipped
func (m *MemoryStore) UpsertNodes(_ context.Context, label models.Label, nodes []models.Node) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, node := range nodes {
		if node.ID == "" {
			continue
		}
		node.Label = label
		if err := m.upsertNode(node); err != nil {
			return n, errors.ValidationErrorf("upsert %s nodes: %v", label, err)
		}
		n++
	}
	return n, nil
}

func (m *MemoryStore) hasNode(label models.Label, id string) bool {
	_, ok := m.nodes[label][id]
	return ok
}

// upsertEdge reports whether both endpoints existed
func (m *MemoryStore) upsertEdge(edge models.Edge) bool {
	if !m.hasNode(edge.FromLabel, edge.FromID) || !m.hasNode(edge.ToLabel, edge.ToID) {
		return false
	}
	key := edge.Key()
	existing, ok := m.edges[key]
	if !ok {
		existing = memoryEdge{edge: edge, props: make(map[string]any)}
	}
	for k, v := range edge.Properties {
		existing.props[k] = v
	}
	m.edges[key] = existing
	return true
}

// UpsertEdge merges one edge; missing endpoints make it a no-op
func (m *MemoryStore) UpsertEdge(_ context.Context, edge models.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertEdge(edge)
	return nil
}

// UpsertEdges merges edges and returns how many matched both endpoints
func (m *MemoryStore) UpsertEdges(_ context.Context, edges []models.Edge) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range edges {
		if m.upsertEdge(e) {
			n++
		}
	}
	return n, nil
}

// EnsureConstraints records one constraint per label
func (m *MemoryStore) EnsureConstraints(_ context.Context, labels []models.Label) error {
	if m.FailConstraints {
		return errors.StoreError(fmt.Errorf("constraint creation disabled"), "create constraints")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range labels {
		m.constraints[ConstraintName(l)] = true
	}
	return nil
}

// HasConstraint reports whether a constraint was created
func (m *MemoryStore) HasConstraint(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.constraints[name]
}

// EnsureVectorIndex records the index dimensions
func (m *MemoryStore) EnsureVectorIndex(_ context.Context, label models.Label, dimensions int) error {
	if dimensions <= 0 {
		return errors.ValidationErrorf("vector index for %s: dimensions must be positive, got %d", label, dimensions)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes[label] = dimensions
	return nil
}

// VectorIndexes returns a copy of the created indexes and their dimensions
func (m *MemoryStore) VectorIndexes() map[models.Label]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[models.Label]int, len(m.indexes))
	for k, v := range m.indexes {
		out[k] = v
	}
	return out
}

func embeddingOf(props map[string]any) []float64 {
	switch v := props["embedding"].(type) {
	case []float64:
		return v
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return out
	}
	return nil
}

func cosine(a []float64, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		bf := float64(b[i])
		dot += a[i] * bf
		na += a[i] * a[i]
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// VectorSearch ranks embedded nodes of label by cosine similarity. Neo4j
// reports cosine scores as (1+cos)/2, so the same mapping is applied here.
func (m *MemoryStore) VectorSearch(_ context.Context, label models.Label, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for id, props := range m.nodes[label] {
		emb := embeddingOf(props)
		if emb == nil {
			continue
		}
		out := make(map[string]any, len(props))
		for key, v := range props {
			if key != "embedding" {
				out[key] = v
			}
		}
		hits = append(hits, Hit{
			Label:      label,
			ID:         id,
			Score:      (1 + cosine(emb, vector)) / 2,
			Properties: out,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// CountEmbedded counts nodes carrying an embedding per label
func (m *MemoryStore) CountEmbedded(_ context.Context, labels []models.Label) (map[models.Label]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[models.Label]int, len(labels))
	for _, l := range labels {
		n := 0
		for _, props := range m.nodes[l] {
			if embeddingOf(props) != nil {
				n++
			}
		}
		out[l] = n
	}
	return out, nil
}

// Totals counts nodes per label and edges per type
func (m *MemoryStore) Totals(_ context.Context) (Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t := Totals{
		Nodes:         make(map[models.Label]int),
		Relationships: make(map[models.RelType]int),
	}
	for l, byID := range m.nodes {
		if len(byID) > 0 {
			t.Nodes[l] = len(byID)
		}
	}
	for _, e := range m.edges {
		t.Relationships[e.edge.Type]++
	}
	return t, nil
}

// Node returns a copy of a stored node's properties
func (m *MemoryStore) Node(label models.Label, id string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	props, ok := m.nodes[label][id]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out, true
}

// Edges returns stored edges of a type, sorted by key
func (m *MemoryStore) Edges(rel models.RelType) []models.Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Edge
	for _, e := range m.edges {
		if e.edge.Type != rel {
			continue
		}
		edge := e.edge
		edge.Properties = make(map[string]any, len(e.props))
		for k, v := range e.props {
			edge.Properties[k] = v
		}
		out = append(out, edge)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Clear drops all nodes and edges; constraints and indexes survive
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = make(map[models.Label]map[string]map[string]any)
	m.edges = make(map[string]memoryEdge)
	return nil
}

func (m *MemoryStore) Close(_ context.Context) error { return nil }
