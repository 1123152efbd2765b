package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsNoop(t *testing.T) {
	SetRecorder(nil)
	assert.NotPanics(t, func() {
		Default().ObserveIngest(map[string]int{"Person": 1}, nil)
		Time("query")(true)
	})
}

func TestPrometheusRecorder(t *testing.T) {
	p := NewPrometheusRecorder()
	SetRecorder(p)
	defer SetRecorder(nil)

	Default().ObserveIngest(
		map[string]int{"Person": 2, "CodeChange": 1},
		map[string]int{"Person-AUTHORED->CodeChange": 1},
	)
	Time("query")(false)

	server := httptest.NewServer(p.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `teamgraph_nodes_written_total{label="Person"} 2`)
	assert.Contains(t, text, `teamgraph_edges_written_total{description="Person-AUTHORED->CodeChange"} 1`)
	assert.Contains(t, text, `teamgraph_ops_total{op="query",success="false"} 1`)

	health, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
