package models

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_LegacyFieldNames(t *testing.T) {
	raw := `{
		"users": [{"id": "user-1", "githubLogin": "alice", "slackHandle": "alice.s", "name": "Alice"}],
		"repositories": [{"id": "repo-9", "name": "atlas", "full_name": "acme/atlas"}],
		"slackMessages": [{"id": "m1", "text": "hi", "threadTs": "2025-04-26T21:55:36.966Z", "userName": "alice.s"}]
	}`

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	require.Len(t, doc.Users, 1)
	assert.Equal(t, "alice", doc.Users[0].DisplayLogin)
	assert.Equal(t, "alice.s", doc.Users[0].MessagingHandle)
	assert.Equal(t, "Alice", doc.Users[0].DisplayName)

	require.Len(t, doc.Repositories, 1)
	assert.Equal(t, "acme/atlas", doc.Repositories[0].FullName)

	require.Len(t, doc.SlackMessages, 1)
	assert.Equal(t, "2025-04-26T21:55:36.966Z", doc.SlackMessages[0].ThreadParentTimestamp)
	assert.Equal(t, "alice.s", doc.SlackMessages[0].SourceAuthorHandle)
}

func TestDocument_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "doc.json")
	doc := &Document{
		PullRequests: []CodeChange{{ID: "55", Number: 7, Body: "closes #3", AuthorID: "user-1"}},
	}
	require.NoError(t, doc.Save(path))

	loaded, err := LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, doc.PullRequests, loaded.PullRequests)
}

func TestNode_OmitsEmptyOptionalFields(t *testing.T) {
	n := Message{ID: "m1", ChannelID: "channel-C1", Text: "hello", CreatedAt: "2025-01-01T00:00:00.000Z"}.Node()

	assert.Equal(t, LabelMessage, n.Label)
	assert.Equal(t, "m1", n.Properties["id"])
	assert.NotContains(t, n.Properties, "threadParentTimestamp")
	assert.NotContains(t, n.Properties, "authorId")
	assert.NotContains(t, n.Properties, "embedding")

	withVec := CodeChange{ID: "55", Number: 7, Embedding: []float32{0.5, 1}}.Node()
	assert.Equal(t, []float64{0.5, 1}, withVec.Properties["embedding"])
	assert.Equal(t, int64(7), withVec.Properties["number"])
}

func TestEdge_Description(t *testing.T) {
	e := Edge{FromLabel: LabelPerson, ToLabel: LabelCodeChange, Type: RelAuthored}
	assert.Equal(t, "Person-AUTHORED->CodeChange", e.Description())
	assert.Equal(t, "codechange_vector_idx", LabelCodeChange.VectorIndexName())
}
