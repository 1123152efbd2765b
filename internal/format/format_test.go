package format

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/teamgraph/internal/models"
)

func decode(t *testing.T, s string) Record {
	t.Helper()
	var r Record
	require.NoError(t, json.Unmarshal([]byte(s), &r))
	return r
}

func TestSlackTimestampToISO(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1745704536.966429", "2025-04-26T21:55:36.966Z"},
		{"1745704536", "2025-04-26T21:55:36.000Z"},
		{"1745704536.9", "2025-04-26T21:55:36.900Z"},
		{"", ""},
		{"not-a-ts", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SlackTimestampToISO(tt.in))
		})
	}
}

func TestPullRequest(t *testing.T) {
	r := decode(t, `{
		"id": 1873465512, "number": 7, "title": "Add OAuth", "body": null,
		"state": "closed", "merged_at": "2024-03-02T10:00:00Z",
		"created_at": "2024-03-01T09:30:00Z",
		"user": {"id": 101, "login": "alice"},
		"repository_id": 9
	}`)

	c, err := PullRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "1873465512", c.ID)
	assert.Equal(t, 7, c.Number)
	assert.Equal(t, "", c.Body)
	assert.Equal(t, "merged", c.State)
	assert.Equal(t, "2024-03-01T09:30:00.000Z", c.CreatedAt)
	assert.Equal(t, "user-101", c.AuthorID)
	assert.Equal(t, "alice", c.AuthorLogin)
	assert.Equal(t, "repo-9", c.RepositoryID)
}

func TestPullRequestState(t *testing.T) {
	tests := []struct {
		name string
		r    Record
		want string
	}{
		{"open", Record{"state": "open"}, "open"},
		{"closed unmerged", Record{"state": "closed"}, "closed"},
		{"closed merged flag", Record{"state": "closed", "merged": true}, "merged"},
		{"unknown", Record{"state": "draft"}, "open"},
		{"missing", Record{}, "open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PullRequestState(tt.r))
		})
	}
}

func TestIssueAndRepository(t *testing.T) {
	issue, err := Issue(decode(t, `{"id": 3, "number": 3, "title": "Crash", "state": "open", "user": {"id": 2, "login": "bob"}}`))
	require.NoError(t, err)
	assert.Equal(t, "issue-3", issue.ID)
	assert.Equal(t, 3, issue.Number)
	assert.Equal(t, "", issue.Body)
	assert.Equal(t, "user-2", issue.AuthorID)

	repo, err := Repository(decode(t, `{"id": 9, "full_name": "acme/atlas"}`))
	require.NoError(t, err)
	assert.Equal(t, "repo-9", repo.ID)
	assert.Equal(t, "atlas", repo.Name)
	assert.Equal(t, "", repo.Description)

	// already-prefixed ids are not prefixed twice
	again, err := Repository(Record{"id": "repo-9"})
	require.NoError(t, err)
	assert.Equal(t, "repo-9", again.ID)
}

func TestMissingIDIsMalformed(t *testing.T) {
	_, err := PullRequest(Record{"number": 1})
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = Contributor(Record{"login": "alice"})
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = Message(Record{"text": "hi"}, "C1")
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestMessage(t *testing.T) {
	r := decode(t, `{
		"ts": "1745704536.966429", "thread_ts": "1745704500.000100",
		"text": "see PR #7", "user": "U08ALICE001",
		"user_info": {"name": "alice.s"}
	}`)

	m, err := Message(r, "C0123")
	require.NoError(t, err)
	assert.Equal(t, "channel-C0123", m.ChannelID)
	assert.Equal(t, "alice.s", m.SourceAuthorHandle)
	assert.Equal(t, "2025-04-26T21:55:36.966Z", m.CreatedAt)
	assert.Equal(t, "2025-04-26T21:55:00.000Z", m.ThreadParentTimestamp)

	again, err := Message(r, "C0123")
	require.NoError(t, err)
	assert.Equal(t, m.ID, again.ID, "message ids are stable across runs")

	other, err := Message(r, "C9999")
	require.NoError(t, err)
	assert.NotEqual(t, m.ID, other.ID)
}

func TestAuthorHandleFallsBackToUserID(t *testing.T) {
	assert.Equal(t, "U08ALICE001", AuthorHandle(Record{"user": "U08ALICE001"}))
	assert.Equal(t, "U08ALICE001", AuthorHandle(Record{"user": "U08ALICE001", "user_info": map[string]any{}}))
}

func TestIsJoinMessage(t *testing.T) {
	assert.True(t, IsJoinMessage("<@U08ALICE001> has joined the channel"))
	assert.False(t, IsJoinMessage("has joined the channel? no, she left"))
}

func TestFormatAll(t *testing.T) {
	b := RawBatch{}
	b.Add(KindRepository, Record{"id": 9.0, "full_name": "acme/atlas"})
	b.Add(KindContributor, Record{"id": 101.0, "login": "alice"})
	b.Add(KindContributor, Record{"id": 101.0, "login": "alice"})
	b.Add(KindPullRequest, Record{"id": 55.0, "number": 7.0, "body": "closes #3"})
	b.Add(KindPullRequest, Record{"number": 8.0})
	b.Add(KindIssue, Record{"id": 3.0, "number": 3.0})
	b.Add(KindIssue, Record{"id": 4.0, "number": 7.0, "pull_request": map[string]any{"url": "x"}})
	b.Add(KindChannel, Record{"id": "C1", "name": "general"})
	b.Add(KindMessage, Record{"ts": "1745704536.966429", "channel": "C1", "text": "hi"})

	doc, stats := FormatAll(b)

	assert.Len(t, doc.Repositories, 1)
	assert.Len(t, doc.Users, 1)
	assert.Len(t, doc.PullRequests, 1)
	assert.Equal(t, "55", doc.PullRequests[0].ID)
	assert.Len(t, doc.Issues, 1)
	assert.Len(t, doc.SlackChannels, 1)
	assert.Len(t, doc.SlackMessages, 1)
	assert.Equal(t, 1, stats.Dropped[KindPullRequest])
	assert.Equal(t, 1, stats.Skipped[KindIssue])
	assert.Equal(t, 1, stats.Skipped[KindContributor])
}

func TestFromWebhook(t *testing.T) {
	t.Run("pull request", func(t *testing.T) {
		payload := decode(t, `{
			"action": "opened",
			"repository": {"id": 9, "name": "atlas", "full_name": "acme/atlas"},
			"pull_request": {"id": 55, "number": 7, "state": "open", "user": {"id": 101, "login": "alice"}}
		}`)
		items := FromWebhook("pull_request", payload)

		b := RawBatch{}
		for _, it := range items {
			b.Add(it.Kind, it.Record)
		}
		doc, _ := FormatAll(b)
		require.Len(t, doc.PullRequests, 1)
		assert.Equal(t, "repo-9", doc.PullRequests[0].RepositoryID)
		assert.Len(t, doc.Repositories, 1)
		assert.Len(t, doc.Users, 1)
	})

	t.Run("issue comment", func(t *testing.T) {
		payload := decode(t, `{
			"repository": {"id": 9},
			"issue": {"id": 3, "number": 3, "user": {"id": 2, "login": "bob"}},
			"comment": {"id": 77, "body": "repro attached", "user": {"id": 101, "login": "alice"}}
		}`)
		b := RawBatch{}
		for _, it := range FromWebhook("issue_comment", payload) {
			b.Add(it.Kind, it.Record)
		}
		doc, _ := FormatAll(b)
		require.Len(t, doc.TextChunks, 1)
		assert.Equal(t, "comment-77", doc.TextChunks[0].ID)
		assert.Equal(t, "issue-3", doc.TextChunks[0].SourceID)
		assert.Equal(t, models.LabelTicket, doc.TextChunks[0].SourceType)
		assert.Len(t, doc.Users, 2)
	})

	t.Run("unsupported event", func(t *testing.T) {
		assert.Nil(t, FromWebhook("push", Record{"repository": map[string]any{"id": 9.0}}))
	})
}
