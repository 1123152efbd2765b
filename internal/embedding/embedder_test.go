package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/teamgraph/internal/cache"
	teamerrors "github.com/rohankatakam/teamgraph/internal/errors"
	"github.com/rohankatakam/teamgraph/internal/models"
)

// countingProvider records every input it is asked to embed
type countingProvider struct {
	mu     sync.Mutex
	inputs []string
	calls  int
	dims   int
	err    error
}

func (p *countingProvider) Name() string    { return "counting" }
func (p *countingProvider) Model() string   { return "counting-v1" }
func (p *countingProvider) Dimensions() int { return p.dims }

func (p *countingProvider) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.calls++
	p.inputs = append(p.inputs, inputs...)
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		v := make([]float32, p.dims)
		v[0] = float32(len(in))
		out[i] = v
	}
	return out, nil
}

func TestEmbedTexts_EmptyTextGetsZeroVector(t *testing.T) {
	p := &countingProvider{dims: 4}
	e := NewEmbedder(p, nil, Options{})

	vecs, stats, err := e.EmbedTexts(context.Background(), []string{"", "hello"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, vecs[0])
	assert.Equal(t, float32(5), vecs[1][0])
	assert.Equal(t, Stats{Embedded: 1, Empty: 1}, stats)
	assert.Equal(t, []string{"hello"}, p.inputs)
}

func TestEmbedTexts_DuplicatesEmbeddedOnce(t *testing.T) {
	p := &countingProvider{dims: 2}
	e := NewEmbedder(p, nil, Options{BatchSize: 1, Concurrency: 2})

	vecs, stats, err := e.EmbedTexts(context.Background(), []string{"a", "bb", "a"})
	require.NoError(t, err)
	assert.Equal(t, vecs[0], vecs[2])
	assert.Equal(t, 2, stats.Embedded)
	assert.ElementsMatch(t, []string{"a", "bb"}, p.inputs)
	assert.Equal(t, 2, p.calls)
}

func TestEmbedTexts_UsesCache(t *testing.T) {
	c, err := cache.OpenBoltCache(filepath.Join(t.TempDir(), "emb.db"))
	require.NoError(t, err)
	defer c.Close()

	p := &countingProvider{dims: 3}
	e := NewEmbedder(p, c, Options{})

	_, _, err = e.EmbedTexts(context.Background(), []string{"oauth integration"})
	require.NoError(t, err)
	_, stats, err := e.EmbedTexts(context.Background(), []string{"oauth integration"})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Cached)
	assert.Equal(t, 0, stats.Embedded)
	assert.Equal(t, 1, p.calls)
}

func TestEmbedTexts_ProviderFailureIsExternalError(t *testing.T) {
	p := &countingProvider{dims: 2, err: fmt.Errorf("quota")}
	_, _, err := NewEmbedder(p, nil, Options{}).EmbedTexts(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, teamerrors.ErrorTypeExternal, teamerrors.GetType(err))
}

func TestEmbedDocument(t *testing.T) {
	doc := &models.Document{
		PullRequests:  []models.CodeChange{{ID: "pr-1", Title: "Add OAuth", Body: "Implements login"}},
		Issues:        []models.Ticket{{ID: "issue-2", Title: "", Body: ""}},
		SlackMessages: []models.Message{{ID: "m1", Text: "shipped it"}},
		TextChunks:    []models.TextChunk{{ID: "comment-1", Text: "lgtm"}},
	}
	p := &countingProvider{dims: 2}

	stats, err := NewEmbedder(p, nil, Options{}).EmbedDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, float32(len("Add OAuth Implements login")), doc.PullRequests[0].Embedding[0])
	assert.Equal(t, []float32{0, 0}, doc.Issues[0].Embedding)
	assert.Len(t, doc.SlackMessages[0].Embedding, 2)
	assert.Len(t, doc.TextChunks[0].Embedding, 2)
	assert.Equal(t, Stats{Embedded: 3, Empty: 1}, stats)
}

func TestHashProvider(t *testing.T) {
	p := NewHashProvider(64)
	vecs, err := p.Embed(context.Background(), []string{"OAuth login fix", "oauth LOGIN fix", "database migration", ""})
	require.NoError(t, err)

	assert.Equal(t, vecs[0], vecs[1], "case-insensitive and deterministic")
	assert.Len(t, vecs[2], 64)
	for _, f := range vecs[3] {
		assert.Zero(t, f)
	}
}

func TestWrapToDims(t *testing.T) {
	base := &countingProvider{dims: 3}
	assert.Same(t, Provider(base), WrapToDims(base, 3))

	padded := WrapToDims(base, 5)
	vecs, err := padded.Embed(context.Background(), []string{"abc"})
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 0, 0, 0, 0}, vecs[0])

	truncated := WrapToDims(base, 1)
	vecs, err = truncated.Embed(context.Background(), []string{"abcd"})
	require.NoError(t, err)
	assert.Equal(t, []float32{4}, vecs[0])
}

func TestNewProviderSelection(t *testing.T) {
	p, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.Equal(t, "local", p.Name())
	assert.Equal(t, DefaultDimensions, p.Dimensions())

	_, err = New(context.Background(), Config{Provider: "openai"})
	assert.Error(t, err, "missing key")

	_, err = New(context.Background(), Config{Provider: "cohere"})
	assert.Error(t, err)
}

func TestOpenAIProvider_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, 3, req.Dimensions)

		// answer out of order to check index handling
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","model":"text-embedding-3-small",
			"data":[
				{"object":"embedding","index":1,"embedding":[0,1,0]},
				{"object":"embedding","index":0,"embedding":[1,0,0]}],
			"usage":{"prompt_tokens":4,"total_tokens":4}}`)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("sk-test", "", 3, server.URL+"/v1")
	require.NoError(t, err)

	vecs, err := p.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vecs[0])
	assert.Equal(t, []float32{0, 1, 0}, vecs[1])
}

func TestTextRules(t *testing.T) {
	assert.Equal(t, "Title Body", CodeChangeText(models.CodeChange{Title: "Title", Body: "Body"}))
	assert.Equal(t, "Title", TicketText(models.Ticket{Title: "Title"}))
	assert.Equal(t, "", MessageText(models.Message{Text: "  "}))
}
