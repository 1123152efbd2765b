// Package dedup collapses duplicate message records and orders the
// survivors thread by thread.
package dedup

import (
	"sort"

	"github.com/rohankatakam/teamgraph/internal/identity"
	"github.com/rohankatakam/teamgraph/internal/models"
)

// Stats describes one deduplication pass
type Stats struct {
	Input     int
	Output    int
	Collapsed int
}

type contentKey struct {
	text      string
	channelID string
	createdAt string
}

func keyOf(m models.Message) contentKey {
	return contentKey{text: m.Text, channelID: m.ChannelID, createdAt: m.CreatedAt}
}

// Messages collapses records sharing (text, channelId, createdAt) and returns
// the survivors in thread order. The survivor of each group is the same for
// any permutation of the input.
func Messages(in []models.Message) []models.Message {
	out, _ := MessagesWithStats(in)
	return out
}

// MessagesWithStats is Messages plus counts
func MessagesWithStats(in []models.Message) ([]models.Message, Stats) {
	best := make(map[contentKey]models.Message, len(in))
	for _, m := range in {
		k := keyOf(m)
		cur, ok := best[k]
		if !ok || better(m, cur) {
			best[k] = m
		}
	}

	survivors := make([]models.Message, 0, len(best))
	for _, m := range best {
		survivors = append(survivors, m)
	}
	ordered := OrderThreads(survivors)

	return ordered, Stats{
		Input:     len(in),
		Output:    len(ordered),
		Collapsed: len(in) - len(ordered),
	}
}

// better reports whether candidate should replace current as a group's
// survivor. Human-readable handles beat raw platform ids; remaining ties
// fall to the canonical order of (handle, id) so the result does not depend
// on arrival order.
func better(candidate, current models.Message) bool {
	candRaw := identity.IsRawPlatformID(candidate.SourceAuthorHandle)
	curRaw := identity.IsRawPlatformID(current.SourceAuthorHandle)
	if candRaw != curRaw {
		return !candRaw
	}
	if candidate.SourceAuthorHandle != current.SourceAuthorHandle {
		return candidate.SourceAuthorHandle < current.SourceAuthorHandle
	}
	return candidate.ID < current.ID
}

type threadGroup struct {
	key      string
	messages []models.Message
}

// OrderThreads groups messages by channel and thread key, sorts each group
// chronologically and orders groups by their earliest message. Ties on
// timestamps are broken by id.
func OrderThreads(in []models.Message) []models.Message {
	groups := make(map[string]*threadGroup)
	var order []*threadGroup
	for _, m := range in {
		k := m.ChannelID + "\x00" + m.ThreadKey()
		g, ok := groups[k]
		if !ok {
			g = &threadGroup{key: k}
			groups[k] = g
			order = append(order, g)
		}
		g.messages = append(g.messages, m)
	}

	for _, g := range order {
		sort.SliceStable(g.messages, func(i, j int) bool {
			return chronological(g.messages[i], g.messages[j])
		})
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i].messages[0], order[j].messages[0]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return order[i].key < order[j].key
	})

	out := make([]models.Message, 0, len(in))
	for _, g := range order {
		out = append(out, g.messages...)
	}
	return out
}

func chronological(a, b models.Message) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.ID < b.ID
}
