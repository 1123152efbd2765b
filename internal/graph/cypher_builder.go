package graph

import (
	"fmt"
	"regexp"

	"github.com/rohankatakam/teamgraph/internal/models"
)

// Labels, relationship types and property keys are interpolated into Cypher
// text; every value goes through parameters. Identifiers must match this.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

func validateIdentifiers(kind string, values ...string) error {
	for _, v := range values {
		if !isValidIdentifier(v) {
			return fmt.Errorf("invalid %s: %q (must be alphanumeric + underscore)", kind, v)
		}
	}
	return nil
}

// CypherBuilder builds parameterized Cypher statements
type CypherBuilder struct {
	params  map[string]any
	counter int
}

// NewCypherBuilder creates a statement builder
func NewCypherBuilder() *CypherBuilder {
	return &CypherBuilder{params: make(map[string]any)}
}

// AddParam adds a parameter and returns its placeholder
func (b *CypherBuilder) AddParam(value any) string {
	name := fmt.Sprintf("p%d", b.counter)
	b.counter++
	b.params[name] = value
	return "$" + name
}

// Params returns all parameters added so far
func (b *CypherBuilder) Params() map[string]any {
	return b.params
}

// BuildMergeNode merges one node on id and replaces its property set
func (b *CypherBuilder) BuildMergeNode(node models.Node) (string, error) {
	if err := validateIdentifiers("node label", string(node.Label)); err != nil {
		return "", err
	}
	if node.ID == "" {
		return "", fmt.Errorf("node of label %s has no id", node.Label)
	}
	props := make(map[string]any, len(node.Properties)+1)
	for k, v := range node.Properties {
		if err := validateIdentifiers("property key", k); err != nil {
			return "", err
		}
		props[k] = v
	}
	props["id"] = node.ID

	idParam := b.AddParam(node.ID)
	propsParam := b.AddParam(props)
	return fmt.Sprintf("MERGE (n:%s {id: %s}) SET n = %s", node.Label, idParam, propsParam), nil
}

// BuildMergeEdge merges one relationship between two existing nodes
func (b *CypherBuilder) BuildMergeEdge(edge models.Edge) (string, error) {
	if err := validateIdentifiers("node label", string(edge.FromLabel), string(edge.ToLabel)); err != nil {
		return "", err
	}
	if err := validateIdentifiers("relationship type", string(edge.Type)); err != nil {
		return "", err
	}
	for k := range edge.Properties {
		if err := validateIdentifiers("edge property key", k); err != nil {
			return "", err
		}
	}
	props := edge.Properties
	if props == nil {
		props = map[string]any{}
	}

	fromParam := b.AddParam(edge.FromID)
	toParam := b.AddParam(edge.ToID)
	propsParam := b.AddParam(props)
	return fmt.Sprintf(
		"MATCH (a:%s {id: %s}) MATCH (b:%s {id: %s}) MERGE (a)-[r:%s]->(b) SET r += %s RETURN count(r) AS merged",
		edge.FromLabel, fromParam,
		edge.ToLabel, toParam,
		edge.Type, propsParam,
	), nil
}

// mergeNodesStatement merges a batch of rows, each row a full property map
// carrying "id".
func mergeNodesStatement(label models.Label) (string, error) {
	if err := validateIdentifiers("node label", string(label)); err != nil {
		return "", err
	}
	return fmt.Sprintf("UNWIND $rows AS row MERGE (n:%s {id: row.id}) SET n = row RETURN count(n) AS merged", label), nil
}

// mergeEdgesStatement merges a batch of rows {from, to, props} for one
// (fromLabel, type, toLabel) combination.
func mergeEdgesStatement(from models.Label, rel models.RelType, to models.Label) (string, error) {
	if err := validateIdentifiers("node label", string(from), string(to)); err != nil {
		return "", err
	}
	if err := validateIdentifiers("relationship type", string(rel)); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"UNWIND $rows AS row MATCH (a:%s {id: row.from}) MATCH (b:%s {id: row.to}) MERGE (a)-[r:%s]->(b) SET r += row.props RETURN count(r) AS merged",
		from, to, rel,
	), nil
}

// ConstraintName is the uniqueness constraint name for a label
func ConstraintName(label models.Label) string {
	return toSnake(string(label)) + "_id"
}

func constraintStatement(label models.Label) (string, error) {
	if err := validateIdentifiers("node label", string(label)); err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE",
		ConstraintName(label), label), nil
}

// vectorIndexStatement interpolates the dimension because index options do
// not accept parameters.
func vectorIndexStatement(label models.Label, dimensions int) (string, error) {
	if err := validateIdentifiers("node label", string(label)); err != nil {
		return "", err
	}
	if dimensions <= 0 {
		return "", fmt.Errorf("vector index for %s: dimensions must be positive, got %d", label, dimensions)
	}
	return fmt.Sprintf(
		"CREATE VECTOR INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.embedding) "+
			"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
		label.VectorIndexName(), label, dimensions,
	), nil
}

const vectorSearchStatement = `CALL db.index.vector.queryNodes($index, $k, $vector) YIELD node, score
RETURN node.id AS id, score, properties(node) AS props
ORDER BY score DESC`

func countEmbeddedStatement(label models.Label) (string, error) {
	if err := validateIdentifiers("node label", string(label)); err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (n:%s) WHERE n.embedding IS NOT NULL RETURN count(n) AS count", label), nil
}

const (
	nodeTotalsStatement = `MATCH (n) UNWIND labels(n) AS label RETURN label, count(*) AS count`
	relTotalsStatement  = `MATCH ()-[r]->() RETURN type(r) AS type, count(*) AS count`
	clearStatement      = `MATCH (n) CALL { WITH n DETACH DELETE n } IN TRANSACTIONS OF 10000 ROWS`
)

func toSnake(s string) string {
	out := make([]byte, 0, len(s)+4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
