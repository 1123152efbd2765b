package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/teamgraph/internal/models"
)

func TestBuildMergeNode(t *testing.T) {
	b := NewCypherBuilder()
	node := models.Person{ID: "user-1", DisplayLogin: "alice", DisplayName: "Alice"}.Node()

	cypher, err := b.BuildMergeNode(node)
	require.NoError(t, err)
	assert.Equal(t, "MERGE (n:Person {id: $p0}) SET n = $p1", cypher)

	params := b.Params()
	assert.Equal(t, "user-1", params["p0"])
	props, ok := params["p1"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", props["displayLogin"])
	assert.Equal(t, "user-1", props["id"])
}

func TestBuildMergeNodeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		node models.Node
	}{
		{"label injection", models.Node{Label: "Person) DETACH DELETE (x", ID: "1"}},
		{"missing id", models.Node{Label: models.LabelPerson}},
		{"bad property key", models.Node{Label: models.LabelPerson, ID: "1", Properties: map[string]any{"a b": 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCypherBuilder().BuildMergeNode(tt.node)
			assert.Error(t, err)
		})
	}
}

func TestBuildMergeEdge(t *testing.T) {
	b := NewCypherBuilder()
	edge := models.Edge{
		FromLabel: models.LabelCodeChange, FromID: "pr-1",
		ToLabel: models.LabelTicket, ToID: "issue-42",
		Type:       models.RelReferences,
		Properties: map[string]any{"type": "fixes"},
	}
	cypher, err := b.BuildMergeEdge(edge)
	require.NoError(t, err)
	assert.Contains(t, cypher, "MATCH (a:CodeChange {id: $p0})")
	assert.Contains(t, cypher, "MATCH (b:Ticket {id: $p1})")
	assert.Contains(t, cypher, "MERGE (a)-[r:REFERENCES]->(b) SET r += $p2")

	_, err = NewCypherBuilder().BuildMergeEdge(models.Edge{
		FromLabel: models.LabelPerson, ToLabel: models.LabelCodeChange, Type: "BAD-TYPE",
	})
	assert.Error(t, err)
}

func TestSchemaStatements(t *testing.T) {
	assert.Equal(t, "code_change_id", ConstraintName(models.LabelCodeChange))
	assert.Equal(t, "text_chunk_id", ConstraintName(models.LabelTextChunk))

	stmt, err := constraintStatement(models.LabelMessage)
	require.NoError(t, err)
	assert.Equal(t, "CREATE CONSTRAINT message_id IF NOT EXISTS FOR (n:Message) REQUIRE n.id IS UNIQUE", stmt)

	idx, err := vectorIndexStatement(models.LabelTicket, 384)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(idx, "CREATE VECTOR INDEX ticket_vector_idx IF NOT EXISTS FOR (n:Ticket)"))
	assert.Contains(t, idx, "`vector.dimensions`: 384")
	assert.Contains(t, idx, "'cosine'")

	_, err = vectorIndexStatement(models.LabelTicket, 0)
	assert.Error(t, err)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk(0, 10))
	assert.Equal(t, [][2]int{{0, 3}}, chunk(3, 10))
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}, {4, 5}}, chunk(5, 2))
}

func TestBatchConfigSizeFor(t *testing.T) {
	cfg := DefaultBatchConfig()
	assert.Equal(t, 200, cfg.SizeFor(models.LabelMessage))
	assert.Equal(t, 1000, cfg.SizeFor(models.LabelPerson))
	assert.Equal(t, 5000, BatchConfig{}.EdgeSize())
}

func TestGetConfigForOperation(t *testing.T) {
	cfg := GetConfigForOperation(OpVectorSearch)
	assert.Equal(t, OpVectorSearch, cfg.Metadata["operation"])
	assert.Len(t, cfg.AsNeo4jConfig(), 2)

	unknown := GetConfigForOperation("reindex")
	assert.Equal(t, "unknown", unknown.Metadata["type"])

	tagged := cfg.WithMetadata("batch", 3)
	assert.Equal(t, 3, tagged.Metadata["batch"])
	_, leaked := cfg.Metadata["batch"]
	assert.False(t, leaked)
}
