package linking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/teamgraph/internal/models"
)

func edgesOfType(res Result, rel models.RelType) []models.Edge {
	var out []models.Edge
	for _, e := range res.Edges {
		if e.Type == rel {
			out = append(out, e)
		}
	}
	return out
}

func TestLink_Scenario(t *testing.T) {
	doc := &models.Document{
		Users:        []models.Person{{ID: "user-1", DisplayLogin: "alice"}},
		PullRequests: []models.CodeChange{{ID: "55", Number: 7, Body: "closes #3", AuthorID: "user-1"}},
		Issues:       []models.Ticket{{ID: "issue-3", Number: 3}},
	}

	res := NewLinker().Link(doc)

	authored := edgesOfType(res, models.RelAuthored)
	require.Len(t, authored, 1)
	assert.Equal(t, "user-1", authored[0].FromID)
	assert.Equal(t, "55", authored[0].ToID)

	refs := edgesOfType(res, models.RelReferences)
	require.Len(t, refs, 1)
	assert.Equal(t, "55", refs[0].FromID)
	assert.Equal(t, "issue-3", refs[0].ToID)
	assert.Equal(t, "related", refs[0].Properties["referenceType"])

	assert.Equal(t, 1, res.Counts["Person-AUTHORED->CodeChange"])
	assert.Equal(t, 1, res.Counts["CodeChange-REFERENCES->Ticket"])
	assert.Len(t, res.Edges, 2)
}

func TestLink_FixesReference(t *testing.T) {
	doc := &models.Document{
		PullRequests: []models.CodeChange{{ID: "pr-1", Number: 10, Body: "Fixes #42"}},
		Issues:       []models.Ticket{{ID: "issue-42", Number: 42}},
	}

	refs := edgesOfType(NewLinker().Link(doc), models.RelReferences)
	require.Len(t, refs, 1)
	assert.Equal(t, "fixes", refs[0].Properties["referenceType"])
}

func TestLink_ReferencePhrasings(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{"Resolves #5", true},
		{"related to #5 somewhat", true},
		{"see ##5", true},
		{"mentions #5 in passing", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			doc := &models.Document{
				PullRequests: []models.CodeChange{{ID: "pr", Number: 1, Body: tt.body}},
				Issues:       []models.Ticket{{ID: "issue-5", Number: 5}, {ID: "issue-x"}},
			}
			refs := edgesOfType(NewLinker().Link(doc), models.RelReferences)
			assert.Equal(t, tt.want, len(refs) == 1)
		})
	}
}

func TestLink_SkipsMissingLookups(t *testing.T) {
	doc := &models.Document{
		PullRequests: []models.CodeChange{
			{ID: "pr-1", AuthorID: "user-404", RepositoryID: "repo-404"},
			{ID: "pr-2"},
		},
		SlackMessages: []models.Message{{ID: "m1", ChannelID: "channel-missing", CreatedAt: "2025-01-01T00:00:00.000Z"}},
	}

	res := NewLinker().Link(doc)

	assert.Empty(t, res.Edges)
	assert.Equal(t, 1, res.Skipped["AUTHORED:unknown_author"])
	assert.Equal(t, 2, res.Skipped["AUTHORED:missing_author"])
	assert.Equal(t, 1, res.Skipped["BELONGS_TO:unknown_repository"])
	assert.Equal(t, 1, res.Skipped["BELONGS_TO:missing_repository"])
	assert.Equal(t, 1, res.Skipped["POSTED_IN:unknown_channel"])
}

func TestLink_RepliesTo(t *testing.T) {
	const root = "2025-01-01T10:00:00.000Z"
	doc := &models.Document{
		SlackChannels: []models.Channel{{ID: "channel-C1", SourceChannelID: "C1"}},
		SlackMessages: []models.Message{
			{ID: "root", ChannelID: "channel-C1", CreatedAt: root, ThreadParentTimestamp: root},
			{ID: "reply", ChannelID: "C1", CreatedAt: "2025-01-01T10:01:00.000Z", ThreadParentTimestamp: "2025-01-01T10:00:00.000"},
			{ID: "orphan", ChannelID: "channel-C1", CreatedAt: "2025-01-01T10:02:00.000Z", ThreadParentTimestamp: "2024-12-31T00:00:00.000Z"},
		},
	}

	res := NewLinker().Link(doc)

	replies := edgesOfType(res, models.RelRepliesTo)
	require.Len(t, replies, 1)
	assert.Equal(t, "reply", replies[0].FromID)
	assert.Equal(t, "root", replies[0].ToID)
	assert.Equal(t, 1, res.Skipped["REPLIES_TO:self_reply"])
	assert.Equal(t, 1, res.Skipped["REPLIES_TO:unknown_thread_parent"])

	posted := edgesOfType(res, models.RelPostedIn)
	require.Len(t, posted, 3)
	for _, e := range posted {
		assert.Equal(t, "channel-C1", e.ToID, "source channel ids resolve to the canonical channel")
	}
}

func TestLink_RepliesToStaysInChannel(t *testing.T) {
	const ts = "2025-01-01T10:00:00.000Z"
	doc := &models.Document{
		SlackChannels: []models.Channel{
			{ID: "channel-A", SourceChannelID: "A"},
			{ID: "channel-B", SourceChannelID: "B"},
		},
		SlackMessages: []models.Message{
			{ID: "rootA", ChannelID: "A", CreatedAt: ts},
			{ID: "replyA", ChannelID: "channel-A", CreatedAt: "2025-01-01T10:05:00.000Z", ThreadParentTimestamp: ts},
			{ID: "otherB", ChannelID: "channel-B", CreatedAt: ts},
		},
	}

	replies := edgesOfType(NewLinker().Link(doc), models.RelRepliesTo)
	require.Len(t, replies, 1)
	assert.Equal(t, "replyA", replies[0].FromID)
	assert.Equal(t, "rootA", replies[0].ToID)
}

func TestLink_RepliesToUnknownParentInOtherChannel(t *testing.T) {
	const ts = "2025-01-01T10:00:00.000Z"
	doc := &models.Document{
		SlackChannels: []models.Channel{{ID: "channel-A"}, {ID: "channel-B"}},
		SlackMessages: []models.Message{
			{ID: "otherB", ChannelID: "channel-B", CreatedAt: ts},
			{ID: "replyA", ChannelID: "channel-A", CreatedAt: "2025-01-01T10:05:00.000Z", ThreadParentTimestamp: ts},
		},
	}

	res := NewLinker().Link(doc)
	assert.Empty(t, edgesOfType(res, models.RelRepliesTo))
	assert.Equal(t, 1, res.Skipped["REPLIES_TO:unknown_thread_parent"])
}

func TestLink_AuthorMatchIsExact(t *testing.T) {
	doc := &models.Document{
		PullRequests:  []models.CodeChange{{ID: "pr-7", Number: 7, AuthorLogin: "Alice"}},
		SlackMessages: []models.Message{{ID: "m1", Text: "pr 7 is ready", AuthorLogin: "alice"}},
	}

	res := NewLinker().Link(doc)

	mentions := edgesOfType(res, models.RelReferencesGitHub)
	require.Len(t, mentions, 1)
	assert.Equal(t, false, mentions[0].Properties["authorMatch"])
	assert.Empty(t, edgesOfType(res, models.RelReferencesGitHubByAuthor))
}

func TestLink_ReferencesGitHub(t *testing.T) {
	doc := &models.Document{
		Users: []models.Person{{ID: "user-1", DisplayLogin: "alice"}, {ID: "user-2", DisplayLogin: "bob"}},
		PullRequests: []models.CodeChange{
			{ID: "pr-7", Number: 7, AuthorID: "user-1"},
			{ID: "pr-8", Number: 8, AuthorLogin: "bob"},
		},
		Issues: []models.Ticket{{ID: "issue-12", Number: 12, AuthorID: "user-2"}},
		SlackMessages: []models.Message{
			{ID: "m1", Text: "Merged PR #7, see issues/12", AuthorID: "user-1", AuthorLogin: "alice"},
			{ID: "m2", Text: "", AuthorLogin: "alice"},
			{ID: "m3", Text: "no refs here"},
		},
	}

	res := NewLinker().Link(doc)

	mentions := edgesOfType(res, models.RelReferencesGitHub)
	require.Len(t, mentions, 2)
	byTarget := map[string]models.Edge{}
	for _, e := range mentions {
		byTarget[e.ToID] = e
		assert.Equal(t, "mention", e.Properties["referenceType"])
		assert.Contains(t, e.Properties, "authorMatch")
	}
	assert.Equal(t, true, byTarget["pr-7"].Properties["authorMatch"])
	assert.Equal(t, false, byTarget["issue-12"].Properties["authorMatch"])

	byAuthor := edgesOfType(res, models.RelReferencesGitHubByAuthor)
	// m1 and m2 are both alice's; alice authored pr-7 only
	require.Len(t, byAuthor, 2)
	for _, e := range byAuthor {
		assert.Equal(t, "pr-7", e.ToID)
		assert.Equal(t, "author_context", e.Properties["referenceType"])
		assert.Equal(t, true, e.Properties["authorMatch"])
	}

	assert.Equal(t, 1, res.Counts["Message-REFERENCES_GITHUB->CodeChange"])
	assert.Equal(t, 1, res.Counts["Message-REFERENCES_GITHUB->Ticket"])
	assert.Equal(t, 2, res.Counts["Message-REFERENCES_GITHUB_BY_AUTHOR->CodeChange"])
}

func TestLink_MentionAndAuthorContextCoexist(t *testing.T) {
	doc := &models.Document{
		PullRequests:  []models.CodeChange{{ID: "pr-7", Number: 7, AuthorLogin: "alice"}},
		SlackMessages: []models.Message{{ID: "m1", Text: "pr 7 is ready", AuthorLogin: "alice"}},
	}

	res := NewLinker().Link(doc)

	assert.Len(t, edgesOfType(res, models.RelReferencesGitHub), 1)
	assert.Len(t, edgesOfType(res, models.RelReferencesGitHubByAuthor), 1)
}

func TestLink_ChunkedFrom(t *testing.T) {
	doc := &models.Document{
		PullRequests: []models.CodeChange{{ID: "pr-7", Number: 7}},
		TextChunks: []models.TextChunk{
			{ID: "c1", SourceID: "pr-7", SourceType: "PullRequest"},
			{ID: "c2", SourceID: "issue-404", SourceType: models.LabelTicket},
			{ID: "c3", SourceID: "pr-7", SourceType: "Commit"},
		},
	}

	res := NewLinker().Link(doc)

	chunks := edgesOfType(res, models.RelChunkedFrom)
	require.Len(t, chunks, 1)
	assert.Equal(t, models.LabelCodeChange, chunks[0].ToLabel)
	assert.Equal(t, 2, res.Skipped["CHUNKED_FROM:unknown_chunk_source"])
}
