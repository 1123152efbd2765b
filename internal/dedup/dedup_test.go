package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/teamgraph/internal/models"
)

func msg(id, handle, text, createdAt, parent string) models.Message {
	return models.Message{
		ID:                    id,
		SourceAuthorHandle:    handle,
		ChannelID:             "channel-C1",
		Text:                  text,
		CreatedAt:             createdAt,
		ThreadParentTimestamp: parent,
	}
}

func permutations(in []models.Message) [][]models.Message {
	if len(in) <= 1 {
		return [][]models.Message{append([]models.Message(nil), in...)}
	}
	var out [][]models.Message
	for i := range in {
		rest := make([]models.Message, 0, len(in)-1)
		rest = append(rest, in[:i]...)
		rest = append(rest, in[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]models.Message{in[i]}, p...))
		}
	}
	return out
}

func TestMessages_PrefersReadableHandle(t *testing.T) {
	const ts = "2025-04-26T21:55:36.966Z"
	in := []models.Message{
		msg("a", "U08ALICE001", "deploy done", ts, ""),
		msg("b", "alice.s", "deploy done", ts, ""),
	}

	out := Messages(in)
	require.Len(t, out, 1)
	assert.Equal(t, "alice.s", out[0].SourceAuthorHandle)
}

func TestMessages_DeterministicAcrossPermutations(t *testing.T) {
	const ts = "2025-04-26T21:55:36.966Z"
	in := []models.Message{
		msg("m-3", "U08ALICE001", "deploy done", ts, ""),
		msg("m-1", "alice.s", "deploy done", ts, ""),
		msg("m-2", "alice", "deploy done", ts, ""),
		msg("m-4", "W0BOT00001", "deploy done", ts, ""),
	}

	want := Messages(in)
	require.Len(t, want, 1)
	for _, p := range permutations(in) {
		assert.Equal(t, want, Messages(p))
	}
	assert.Equal(t, "alice", want[0].SourceAuthorHandle)
}

func TestMessages_DistinctKeysSurvive(t *testing.T) {
	in := []models.Message{
		msg("a", "alice", "hello", "2025-01-01T00:00:00.000Z", ""),
		msg("b", "alice", "hello", "2025-01-01T00:00:01.000Z", ""),
		msg("c", "alice", "hello again", "2025-01-01T00:00:00.000Z", ""),
	}
	other := msg("d", "alice", "hello", "2025-01-01T00:00:00.000Z", "")
	other.ChannelID = "channel-C2"
	in = append(in, other)

	out, stats := MessagesWithStats(in)
	assert.Len(t, out, 4)
	assert.Equal(t, Stats{Input: 4, Output: 4, Collapsed: 0}, stats)
}

func TestOrderThreads(t *testing.T) {
	const (
		t1 = "2025-01-01T10:00:00.000Z"
		t2 = "2025-01-01T10:05:00.000Z"
		t3 = "2025-01-01T10:10:00.000Z"
		t4 = "2025-01-01T10:15:00.000Z"
		t5 = "2025-01-01T10:20:00.000Z"
	)
	in := []models.Message{
		msg("reply-2", "bob", "second reply", t5, t1),
		msg("other", "carol", "unrelated", t2, ""),
		msg("root", "alice", "root", t1, t1),
		msg("reply-1", "bob", "first reply", t3, t1),
		msg("late-root", "dave", "late", t4, ""),
	}

	out := OrderThreads(in)

	var ids []string
	for _, m := range out {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"root", "reply-1", "reply-2", "other", "late-root"}, ids)
}

func TestMessages_CollapsesAndOrders(t *testing.T) {
	const root = "2025-01-01T10:00:00.000Z"
	in := []models.Message{
		msg("r1", "bob", "ack", "2025-01-01T10:01:00.000Z", root),
		msg("dup-raw", "U08ALICE001", "kickoff", root, ""),
		msg("dup", "alice", "kickoff", root, ""),
	}

	out, stats := MessagesWithStats(in)
	require.Len(t, out, 2)
	assert.Equal(t, "dup", out[0].ID)
	assert.Equal(t, "r1", out[1].ID)
	assert.Equal(t, 1, stats.Collapsed)
}

func TestOrderThreads_MixedUTCMarkers(t *testing.T) {
	in := []models.Message{
		msg("root", "alice", "root", "2025-01-01T10:00:00.000Z", ""),
		msg("other", "carol", "unrelated", "2025-01-01T10:01:00.000Z", ""),
		msg("reply", "bob", "reply", "2025-01-01T10:02:00.000Z", "2025-01-01T10:00:00.000"),
	}

	var ids []string
	for _, m := range Messages(in) {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"root", "reply", "other"}, ids)
}
