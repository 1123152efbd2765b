package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/rohankatakam/teamgraph/internal/format"
)

type recordingStager struct {
	puts map[format.Kind]int
}

func (s *recordingStager) Put(_ context.Context, source string, kind format.Kind, records []format.Record) (int, error) {
	if s.puts == nil {
		s.puts = make(map[format.Kind]int)
	}
	s.puts[kind] += len(records)
	return len(records), nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/repos/acme/app", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 501, "name": "app", "full_name": "acme/app", "description": "demo"}`)
	})
	mux.HandleFunc("/repos/acme/app/contributors", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 1, "login": "alice", "contributions": 12}]`)
	})
	mux.HandleFunc("/repos/acme/app/pulls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		fmt.Fprint(w, `[{"id": 9001, "number": 7, "title": "Add OAuth", "body": "Fixes #3",
			"state": "closed", "merged_at": "2024-03-01T10:00:00Z", "created_at": "2024-02-28T09:00:00Z",
			"user": {"id": 1, "login": "alice"}}]`)
	})
	mux.HandleFunc("/repos/acme/app/issues", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"id": 302, "number": 4, "title": "Second page", "state": "closed",
				"user": {"id": 2, "login": "bob"}}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/app/issues?page=2>; rel="next"`, server.URL))
		fmt.Fprint(w, `[
			{"id": 301, "number": 3, "title": "Login broken", "state": "open", "user": {"id": 2, "login": "bob"}},
			{"id": 9001, "number": 7, "title": "Add OAuth", "pull_request": {"url": "x"}}]`)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFetchAll(t *testing.T) {
	server := newTestServer(t)
	stager := &recordingStager{}
	f := NewFetcher("token", WithBaseURL(server.URL), WithRateLimit(rate.Inf), WithStager(stager))

	batch, stats, err := f.FetchAll(context.Background(), "acme", "app")
	require.NoError(t, err)

	assert.Equal(t, 1, stats.PRs)
	assert.Equal(t, 2, stats.Issues, "pull requests in the issues list are skipped")
	assert.Equal(t, 1, stats.Contributors)
	assert.Equal(t, 5, stats.Staged)
	assert.Equal(t, 2, stager.puts[format.KindIssue])

	require.Len(t, batch[format.KindRepository], 1)
	assert.Equal(t, "501", batch[format.KindRepository][0].String("id"))

	doc, _ := format.FormatAll(batch)
	require.Len(t, doc.PullRequests, 1)
	pr := doc.PullRequests[0]
	assert.Equal(t, "9001", pr.ID)
	assert.Equal(t, "merged", pr.State)
	assert.Equal(t, "repo-501", pr.RepositoryID)
	assert.Equal(t, "user-1", pr.AuthorID)

	require.Len(t, doc.Issues, 2)
	assert.Equal(t, "issue-301", doc.Issues[0].ID)
	assert.Equal(t, "repo-501", doc.Issues[0].RepositoryID)
	assert.Equal(t, "alice", doc.Users[0].DisplayLogin)
}

func TestFetchAll_RepositoryFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	f := NewFetcher("", WithBaseURL(server.URL), WithRateLimit(rate.Inf))
	_, _, err := f.FetchAll(context.Background(), "acme", "missing")
	assert.Error(t, err)
}

func TestParseRepo(t *testing.T) {
	owner, name, err := ParseRepo("acme/app.git")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "app", name)

	for _, bad := range []string{"", "acme", "acme/", "a/b/c"} {
		_, _, err := ParseRepo(bad)
		assert.Error(t, err, bad)
	}
}
