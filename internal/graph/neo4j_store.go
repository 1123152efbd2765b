package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/rohankatakam/teamgraph/internal/errors"
	"github.com/rohankatakam/teamgraph/internal/models"
)

// Neo4jConfig holds connection settings
type Neo4jConfig struct {
	URI          string
	User         string
	Password     string
	Database     string
	MaxPoolSize  int
	BatchConfig  BatchConfig
	QueryTimeout time.Duration
}

// Neo4jStore implements Store on a Neo4j 5.11+ server
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	batch    BatchConfig
	logger   *slog.Logger
}

var _ Store = (*Neo4jStore)(nil)

// NewNeo4jStore connects and verifies connectivity. Connection failures are
// critical store errors.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	if cfg.URI == "" || cfg.User == "" || cfg.Password == "" {
		return nil, errors.ConfigErrorf("neo4j credentials missing: uri=%q user=%q", cfg.URI, cfg.User)
	}
	if cfg.Database == "" {
		cfg.Database = "neo4j"
	}
	poolSize := cfg.MaxPoolSize
	if poolSize <= 0 {
		poolSize = 50
	}
	if cfg.BatchConfig == (BatchConfig{}) {
		cfg.BatchConfig = DefaultBatchConfig()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = poolSize
			c.ConnectionAcquisitionTimeout = 60 * time.Second
			c.MaxConnectionLifetime = time.Hour
			c.ConnectionLivenessCheckTimeout = 5 * time.Second
			c.SocketConnectTimeout = 5 * time.Second
			c.SocketKeepalive = true
		})
	if err != nil {
		return nil, errors.StoreError(err, "create neo4j driver")
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, errors.StoreErrorf(err, "connect to neo4j at %s", cfg.URI)
	}

	logger := slog.Default().With("component", "neo4j")
	logger.Info("neo4j store connected",
		"uri", cfg.URI,
		"database", cfg.Database,
		"max_pool_size", poolSize)

	return &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
		batch:    cfg.BatchConfig,
		logger:   logger,
	}, nil
}

// Close closes the driver
func (s *Neo4jStore) Close(ctx context.Context) error {
	if err := s.driver.Close(ctx); err != nil {
		return fmt.Errorf("close neo4j driver: %w", err)
	}
	return nil
}

// HealthCheck verifies connectivity
func (s *Neo4jStore) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, GetConfigForOperation(OpHealthCheck).Timeout)
	defer cancel()
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return errors.StoreError(err, "neo4j health check")
	}
	return nil
}

// run executes one statement in a managed transaction and collects records
func (s *Neo4jStore) run(ctx context.Context, op string, mode RoutingMode, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	txConfig := GetConfigForOperation(op)
	if txConfig.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, txConfig.Timeout)
		defer cancel()
	}

	session := SessionWithRouting(ctx, s.driver, mode, s.database)
	defer session.Close(ctx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	}

	var (
		out any
		err error
	)
	if mode == RoutingRead {
		out, err = session.ExecuteRead(ctx, work, txConfig.AsNeo4jConfig()...)
	} else {
		out, err = session.ExecuteWrite(ctx, work, txConfig.AsNeo4jConfig()...)
	}
	if err != nil {
		return nil, err
	}
	records, _ := out.([]*neo4j.Record)
	return records, nil
}

func intField(rec *neo4j.Record, key string) int {
	v, ok := rec.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// UpsertNode merges one node on id, replacing its properties
func (s *Neo4jStore) UpsertNode(ctx context.Context, node models.Node) error {
	b := NewCypherBuilder()
	cypher, err := b.BuildMergeNode(node)
	if err != nil {
		return errors.ValidationErrorf("upsert %s %s: %v", node.Label, node.ID, err)
	}
	if _, err := s.run(ctx, OpNodeUpsert, RoutingWrite, cypher, b.Params()); err != nil {
		return errors.StoreErrorf(err, "upsert %s %s", node.Label, node.ID)
	}
	return nil
}

// UpsertNodes merges nodes of one label in UNWIND batches
func (s *Neo4jStore) UpsertNodes(ctx context.Context, label models.Label, nodes []models.Node) (int, error) {
	cypher, err := mergeNodesStatement(label)
	if err != nil {
		return 0, errors.ValidationErrorf("upsert %s nodes: %v", label, err)
	}

	total := 0
	for _, r := range chunk(len(nodes), s.batch.SizeFor(label)) {
		rows := make([]any, 0, r[1]-r[0])
		for _, n := range nodes[r[0]:r[1]] {
			if n.ID == "" {
				continue
			}
			row := make(map[string]any, len(n.Properties)+1)
			for k, v := range n.Properties {
				row[k] = v
			}
			row["id"] = n.ID
			rows = append(rows, row)
		}
		records, err := s.run(ctx, OpNodeUpsert, RoutingWrite, cypher, map[string]any{"rows": rows})
		if err != nil {
			return total, errors.StoreErrorf(err, "upsert %s nodes [%d:%d]", label, r[0], r[1])
		}
		if len(records) > 0 {
			total += intField(records[0], "merged")
		}
		s.logger.Debug("upserted node batch", "label", label, "size", len(rows))
	}
	return total, nil
}

// UpsertEdge merges one relationship
func (s *Neo4jStore) UpsertEdge(ctx context.Context, edge models.Edge) error {
	b := NewCypherBuilder()
	cypher, err := b.BuildMergeEdge(edge)
	if err != nil {
		return errors.ValidationErrorf("upsert edge %s: %v", edge.Description(), err)
	}
	if _, err := s.run(ctx, OpEdgeUpsert, RoutingWrite, cypher, b.Params()); err != nil {
		return errors.StoreErrorf(err, "upsert edge %s", edge.Key())
	}
	return nil
}

type edgeGroup struct {
	from models.Label
	rel  models.RelType
	to   models.Label
}

// UpsertEdges groups edges by (from label, type, to label) and merges each
// group in UNWIND batches.
func (s *Neo4jStore) UpsertEdges(ctx context.Context, edges []models.Edge) (int, error) {
	groups := make(map[edgeGroup][]models.Edge)
	var order []edgeGroup
	for _, e := range edges {
		g := edgeGroup{from: e.FromLabel, rel: e.Type, to: e.ToLabel}
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], e)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return fmt.Sprint(order[i]) < fmt.Sprint(order[j])
	})

	total := 0
	for _, g := range order {
		cypher, err := mergeEdgesStatement(g.from, g.rel, g.to)
		if err != nil {
			return total, errors.ValidationErrorf("upsert edges: %v", err)
		}
		group := groups[g]
		for _, r := range chunk(len(group), s.batch.EdgeSize()) {
			rows := make([]any, 0, r[1]-r[0])
			for _, e := range group[r[0]:r[1]] {
				props := e.Properties
				if props == nil {
					props = map[string]any{}
				}
				rows = append(rows, map[string]any{"from": e.FromID, "to": e.ToID, "props": props})
			}
			records, err := s.run(ctx, OpEdgeUpsert, RoutingWrite, cypher, map[string]any{"rows": rows})
			if err != nil {
				return total, errors.StoreErrorf(err, "upsert %s-%s->%s edges", g.from, g.rel, g.to)
			}
			if len(records) > 0 {
				total += intField(records[0], "merged")
			}
		}
	}
	return total, nil
}

// EnsureConstraints creates one uniqueness constraint per label. Any failure
// is critical: without the constraint merges can race into duplicates.
func (s *Neo4jStore) EnsureConstraints(ctx context.Context, labels []models.Label) error {
	for _, label := range labels {
		cypher, err := constraintStatement(label)
		if err != nil {
			return errors.StoreError(err, "build constraint statement")
		}
		if _, err := s.run(ctx, OpSchema, RoutingWrite, cypher, nil); err != nil {
			return errors.StoreErrorf(err, "create constraint %s", ConstraintName(label)).
				WithContext("label", string(label))
		}
		s.logger.Debug("constraint ensured", "name", ConstraintName(label))
	}
	return nil
}

// EnsureVectorIndex creates the label's cosine vector index
func (s *Neo4jStore) EnsureVectorIndex(ctx context.Context, label models.Label, dimensions int) error {
	cypher, err := vectorIndexStatement(label, dimensions)
	if err != nil {
		return errors.ValidationErrorf("vector index: %v", err)
	}
	if _, err := s.run(ctx, OpSchema, RoutingWrite, cypher, nil); err != nil {
		return errors.StoreErrorf(err, "create vector index %s", label.VectorIndexName())
	}
	s.logger.Info("vector index ensured", "index", label.VectorIndexName(), "dimensions", dimensions)
	return nil
}

// VectorSearch queries the label's vector index
func (s *Neo4jStore) VectorSearch(ctx context.Context, label models.Label, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	vec := make([]float64, len(vector))
	for i, f := range vector {
		vec[i] = float64(f)
	}
	params := map[string]any{
		"index":  label.VectorIndexName(),
		"k":      int64(k),
		"vector": vec,
	}
	records, err := s.run(ctx, OpVectorSearch, RoutingRead, vectorSearchStatement, params)
	if err != nil {
		return nil, errors.StoreErrorf(err, "vector search on %s", label.VectorIndexName())
	}

	hits := make([]Hit, 0, len(records))
	for _, rec := range records {
		id, _ := rec.Get("id")
		score, _ := rec.Get("score")
		raw, _ := rec.Get("props")
		props, _ := raw.(map[string]any)
		delete(props, "embedding")
		idStr, _ := id.(string)
		scoreF, _ := score.(float64)
		hits = append(hits, Hit{Label: label, ID: idStr, Score: scoreF, Properties: props})
	}
	return hits, nil
}

// CountEmbedded counts nodes with an embedding per label
func (s *Neo4jStore) CountEmbedded(ctx context.Context, labels []models.Label) (map[models.Label]int, error) {
	out := make(map[models.Label]int, len(labels))
	for _, label := range labels {
		cypher, err := countEmbeddedStatement(label)
		if err != nil {
			return nil, errors.ValidationErrorf("count embedded: %v", err)
		}
		records, err := s.run(ctx, OpCount, RoutingRead, cypher, nil)
		if err != nil {
			return nil, errors.StoreErrorf(err, "count embedded %s", label)
		}
		if len(records) > 0 {
			out[label] = intField(records[0], "count")
		}
	}
	return out, nil
}

// Totals counts nodes per label and relationships per type
func (s *Neo4jStore) Totals(ctx context.Context) (Totals, error) {
	t := Totals{
		Nodes:         make(map[models.Label]int),
		Relationships: make(map[models.RelType]int),
	}
	records, err := s.run(ctx, OpCount, RoutingRead, nodeTotalsStatement, nil)
	if err != nil {
		return t, errors.StoreError(err, "count nodes")
	}
	for _, rec := range records {
		label, _ := rec.Get("label")
		if l, ok := label.(string); ok {
			t.Nodes[models.Label(l)] = intField(rec, "count")
		}
	}
	records, err = s.run(ctx, OpCount, RoutingRead, relTotalsStatement, nil)
	if err != nil {
		return t, errors.StoreError(err, "count relationships")
	}
	for _, rec := range records {
		typ, _ := rec.Get("type")
		if r, ok := typ.(string); ok {
			t.Relationships[models.RelType(r)] = intField(rec, "count")
		}
	}
	return t, nil
}

// Clear deletes everything. CALL ... IN TRANSACTIONS needs an auto-commit
// transaction, so this bypasses the managed-transaction helper.
func (s *Neo4jStore) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, GetConfigForOperation(OpClear).Timeout)
	defer cancel()

	session := SessionWithRouting(ctx, s.driver, RoutingWrite, s.database)
	defer session.Close(ctx)

	result, err := session.Run(ctx, clearStatement, nil)
	if err != nil {
		return errors.StoreError(err, "clear graph")
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return errors.StoreError(err, "clear graph")
	}
	s.logger.Warn("graph cleared", "nodes_deleted", summary.Counters().NodesDeleted())
	return nil
}
