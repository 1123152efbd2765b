package slack

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/teamgraph/internal/format"
)

type recordingStager struct {
	puts map[format.Kind]int
}

func (s *recordingStager) Put(_ context.Context, _ string, kind format.Kind, records []format.Record) (int, error) {
	if s.puts == nil {
		s.puts = make(map[format.Kind]int)
	}
	s.puts[kind] += len(records)
	return len(records), nil
}

func newTestServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	userLookups := 0
	mux := http.NewServeMux()

	mux.HandleFunc("/conversations.info", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "C123", r.FormValue("channel"))
		fmt.Fprint(w, `{"ok": true, "channel": {"id": "C123", "name": "eng", "is_private": false}}`)
	})
	mux.HandleFunc("/conversations.history", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("cursor") == "next" {
			fmt.Fprint(w, `{"ok": true, "has_more": false, "messages": [
				{"type": "message", "user": "U2", "text": "bob has joined the channel", "ts": "1700000000.000100"}]}`)
			return
		}
		fmt.Fprint(w, `{"ok": true, "has_more": true, "response_metadata": {"next_cursor": "next"}, "messages": [
			{"type": "message", "user": "U1", "text": "Shipped the OAuth PR", "ts": "1700000100.000200",
			 "thread_ts": "1700000100.000200", "reply_count": 1}]}`)
	})
	mux.HandleFunc("/conversations.replies", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1700000100.000200", r.FormValue("ts"))
		fmt.Fprint(w, `{"ok": true, "has_more": false, "messages": [
			{"type": "message", "user": "U1", "text": "Shipped the OAuth PR", "ts": "1700000100.000200", "thread_ts": "1700000100.000200"},
			{"type": "message", "user": "U2", "text": "nice", "ts": "1700000200.000300", "thread_ts": "1700000100.000200"}]}`)
	})
	mux.HandleFunc("/users.info", func(w http.ResponseWriter, r *http.Request) {
		userLookups++
		switch r.FormValue("user") {
		case "U1":
			fmt.Fprint(w, `{"ok": true, "user": {"id": "U1", "name": "alice"}}`)
		default:
			fmt.Fprint(w, `{"ok": false, "error": "user_not_found"}`)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &userLookups
}

func TestFetchChannels(t *testing.T) {
	server, lookups := newTestServer(t)
	stager := &recordingStager{}
	f := NewFetcher("xoxb-test", WithAPIURL(server.URL+"/"), WithStager(stager))

	batch, stats, err := f.FetchChannels(context.Background(), []string{"C123"}, FetchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Channels)
	assert.Equal(t, 2, stats.Messages)
	assert.Equal(t, 1, stats.Replies)
	assert.Equal(t, 2, *lookups, "each user is looked up once")
	assert.Equal(t, 3, stager.puts[format.KindMessage])
	assert.Equal(t, 4, stats.Staged)

	doc, _ := format.FormatAll(batch)
	require.Len(t, doc.SlackChannels, 1)
	assert.Equal(t, "channel-C123", doc.SlackChannels[0].ID)

	require.Len(t, doc.SlackMessages, 3)
	first := doc.SlackMessages[0]
	assert.Equal(t, "alice", first.SourceAuthorHandle)
	assert.Equal(t, "channel-C123", first.ChannelID)
	assert.Equal(t, format.MessageID("C123", "1700000100.000200"), first.ID)

	reply := doc.SlackMessages[1]
	assert.Equal(t, "U2", reply.SourceAuthorHandle, "unresolved users fall back to the raw id")
	assert.Equal(t, first.CreatedAt, reply.ThreadParentTimestamp)
}

func TestFetchChannels_SkipReplies(t *testing.T) {
	server, _ := newTestServer(t)
	f := NewFetcher("xoxb-test", WithAPIURL(server.URL+"/"))

	_, stats, err := f.FetchChannels(context.Background(), []string{"C123"}, FetchOptions{SkipReplies: true})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Replies)
	assert.Equal(t, 2, stats.Messages)
}

func TestFetchChannels_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok": false, "error": "channel_not_found"}`)
	}))
	defer server.Close()

	f := NewFetcher("xoxb-test", WithAPIURL(server.URL+"/"))
	_, _, err := f.FetchChannels(context.Background(), []string{"C404"}, FetchOptions{})
	assert.ErrorContains(t, err, "channel_not_found")
}
