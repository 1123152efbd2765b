// Package linking infers graph edges between canonical entities from their
// foreign-key fields and from textual references.
package linking

import (
	"log/slog"
	"strings"

	"github.com/rohankatakam/teamgraph/internal/models"
)

// Skip reasons reported in Result.Skipped
const (
	SkipMissingAuthor     = "missing_author"
	SkipUnknownAuthor     = "unknown_author"
	SkipMissingRepository = "missing_repository"
	SkipUnknownRepository = "unknown_repository"
	SkipUnknownChannel    = "unknown_channel"
	SkipUnknownParent     = "unknown_thread_parent"
	SkipSelfReply         = "self_reply"
	SkipUnknownSource     = "unknown_chunk_source"
)

// Result is the edge list for one batch plus counts per edge description
// and per skip reason.
type Result struct {
	Edges   []models.Edge
	Counts  map[string]int
	Skipped map[string]int
}

func (r *Result) add(e models.Edge) {
	r.Edges = append(r.Edges, e)
	r.Counts[e.Description()]++
}

func (r *Result) skip(rel models.RelType, reason string) {
	r.Skipped[string(rel)+":"+reason]++
}

// Linker builds edges for a formatted, deduplicated batch. It keeps no
// state between calls.
type Linker struct {
	logger *slog.Logger
}

// NewLinker creates a linker
func NewLinker() *Linker {
	return &Linker{logger: slog.Default().With("component", "linker")}
}

// batchIndex holds lookups over one document
type batchIndex struct {
	people         map[string]models.Person
	repositories   map[string]bool
	channels       map[string]string // id or source id -> id
	codeChanges    map[string]models.CodeChange
	tickets        map[string]models.Ticket
	messages       map[string]bool
	loginByID      map[string]string
	messageByStamp map[threadStamp]string
}

// threadStamp locates a message by its channel and creation time
type threadStamp struct {
	channel string
	ts      string
}

func newBatchIndex(doc *models.Document) *batchIndex {
	idx := &batchIndex{
		people:         make(map[string]models.Person, len(doc.Users)),
		repositories:   make(map[string]bool, len(doc.Repositories)),
		channels:       make(map[string]string, len(doc.SlackChannels)*2),
		codeChanges:    make(map[string]models.CodeChange, len(doc.PullRequests)),
		tickets:        make(map[string]models.Ticket, len(doc.Issues)),
		messages:       make(map[string]bool, len(doc.SlackMessages)),
		loginByID:      make(map[string]string, len(doc.Users)),
		messageByStamp: make(map[threadStamp]string, len(doc.SlackMessages)),
	}
	for _, p := range doc.Users {
		idx.people[p.ID] = p
		idx.loginByID[p.ID] = p.DisplayLogin
	}
	for _, r := range doc.Repositories {
		idx.repositories[r.ID] = true
	}
	for _, c := range doc.SlackChannels {
		idx.channels[c.ID] = c.ID
		if c.SourceChannelID != "" {
			if _, taken := idx.channels[c.SourceChannelID]; !taken {
				idx.channels[c.SourceChannelID] = c.ID
			}
		}
	}
	for _, c := range doc.PullRequests {
		idx.codeChanges[c.ID] = c
	}
	for _, t := range doc.Issues {
		idx.tickets[t.ID] = t
	}
	for _, m := range doc.SlackMessages {
		idx.messages[m.ID] = true
		if m.CreatedAt != "" {
			idx.messageByStamp[idx.stamp(m.ChannelID, m.CreatedAt)] = m.ID
		}
	}
	return idx
}

// stamp keys ts under the canonical channel id, so "C1" and "channel-C1"
// agree. Unknown channels key under their raw id.
func (idx *batchIndex) stamp(channelID, ts string) threadStamp {
	if canonical, ok := idx.channels[channelID]; ok {
		channelID = canonical
	}
	return threadStamp{channel: channelID, ts: stripUTC(ts)}
}

func (idx *batchIndex) codeChangeLogin(c models.CodeChange) string {
	if c.AuthorLogin != "" {
		return c.AuthorLogin
	}
	return idx.loginByID[c.AuthorID]
}

func (idx *batchIndex) ticketLogin(t models.Ticket) string {
	if t.AuthorLogin != "" {
		return t.AuthorLogin
	}
	return idx.loginByID[t.AuthorID]
}

func (idx *batchIndex) messageLogin(m models.Message) string {
	if m.AuthorLogin != "" {
		return m.AuthorLogin
	}
	return idx.loginByID[m.AuthorID]
}

// Link produces every edge for the batch. Missing lookups skip the edge and
// are counted; Link never fails.
func (l *Linker) Link(doc *models.Document) Result {
	res := Result{
		Counts:  make(map[string]int),
		Skipped: make(map[string]int),
	}
	idx := newBatchIndex(doc)

	l.authored(doc, idx, &res)
	l.belongsTo(doc, idx, &res)
	l.references(doc, &res)
	l.postedIn(doc, idx, &res)
	l.repliesTo(doc, idx, &res)
	l.referencesGitHub(doc, idx, &res)
	l.referencesGitHubByAuthor(doc, idx, &res)
	l.chunkedFrom(doc, idx, &res)

	l.logger.Info("linked batch", "edges", len(res.Edges), "edge_types", len(res.Counts))
	return res
}

func (l *Linker) authored(doc *models.Document, idx *batchIndex, res *Result) {
	link := func(authorID string, to models.Label, toID string) {
		if authorID == "" {
			res.skip(models.RelAuthored, SkipMissingAuthor)
			return
		}
		if _, ok := idx.people[authorID]; !ok {
			res.skip(models.RelAuthored, SkipUnknownAuthor)
			return
		}
		res.add(models.Edge{
			FromLabel: models.LabelPerson, FromID: authorID,
			ToLabel: to, ToID: toID,
			Type: models.RelAuthored,
		})
	}
	for _, c := range doc.PullRequests {
		link(c.AuthorID, models.LabelCodeChange, c.ID)
	}
	for _, t := range doc.Issues {
		link(t.AuthorID, models.LabelTicket, t.ID)
	}
	for _, m := range doc.SlackMessages {
		link(m.AuthorID, models.LabelMessage, m.ID)
	}
}

func (l *Linker) belongsTo(doc *models.Document, idx *batchIndex, res *Result) {
	link := func(from models.Label, fromID, repoID string) {
		if repoID == "" {
			res.skip(models.RelBelongsTo, SkipMissingRepository)
			return
		}
		if !idx.repositories[repoID] {
			res.skip(models.RelBelongsTo, SkipUnknownRepository)
			return
		}
		res.add(models.Edge{
			FromLabel: from, FromID: fromID,
			ToLabel: models.LabelRepository, ToID: repoID,
			Type: models.RelBelongsTo,
		})
	}
	for _, c := range doc.PullRequests {
		link(models.LabelCodeChange, c.ID, c.RepositoryID)
	}
	for _, t := range doc.Issues {
		link(models.LabelTicket, t.ID, t.RepositoryID)
	}
}

// references compares every code change body against every ticket number
// in the batch.
func (l *Linker) references(doc *models.Document, res *Result) {
	for _, c := range doc.PullRequests {
		body := strings.ToLower(c.Body)
		if body == "" {
			continue
		}
		for _, t := range doc.Issues {
			if t.Number == 0 {
				continue
			}
			if _, ok := matchAny(body, codeChangeTicketPhrases(t.Number)); !ok {
				continue
			}
			res.add(models.Edge{
				FromLabel: models.LabelCodeChange, FromID: c.ID,
				ToLabel: models.LabelTicket, ToID: t.ID,
				Type:       models.RelReferences,
				Properties: map[string]any{"referenceType": referenceType(body)},
			})
		}
	}
}

func (l *Linker) postedIn(doc *models.Document, idx *batchIndex, res *Result) {
	for _, m := range doc.SlackMessages {
		channelID, ok := idx.channels[m.ChannelID]
		if !ok {
			res.skip(models.RelPostedIn, SkipUnknownChannel)
			continue
		}
		res.add(models.Edge{
			FromLabel: models.LabelMessage, FromID: m.ID,
			ToLabel: models.LabelChannel, ToID: channelID,
			Type: models.RelPostedIn,
		})
	}
}

func (l *Linker) repliesTo(doc *models.Document, idx *batchIndex, res *Result) {
	for _, m := range doc.SlackMessages {
		if m.ThreadParentTimestamp == "" {
			continue
		}
		parentID, ok := idx.messageByStamp[idx.stamp(m.ChannelID, m.ThreadParentTimestamp)]
		if !ok {
			res.skip(models.RelRepliesTo, SkipUnknownParent)
			continue
		}
		if parentID == m.ID {
			res.skip(models.RelRepliesTo, SkipSelfReply)
			continue
		}
		res.add(models.Edge{
			FromLabel: models.LabelMessage, FromID: m.ID,
			ToLabel: models.LabelMessage, ToID: parentID,
			Type: models.RelRepliesTo,
		})
	}
}

func authorMatch(messageLogin, entityLogin string) bool {
	return messageLogin != "" && messageLogin == entityLogin
}

func (l *Linker) referencesGitHub(doc *models.Document, idx *batchIndex, res *Result) {
	for _, m := range doc.SlackMessages {
		text := strings.ToLower(m.Text)
		if text == "" {
			continue
		}
		login := idx.messageLogin(m)

		for _, c := range doc.PullRequests {
			if c.Number == 0 {
				continue
			}
			if _, ok := matchAny(text, messageCodeChangePhrases(c.Number)); !ok {
				continue
			}
			res.add(models.Edge{
				FromLabel: models.LabelMessage, FromID: m.ID,
				ToLabel: models.LabelCodeChange, ToID: c.ID,
				Type: models.RelReferencesGitHub,
				Properties: map[string]any{
					"referenceType": models.ReferenceMention,
					"authorMatch":   authorMatch(login, idx.codeChangeLogin(c)),
				},
			})
		}

		for _, t := range doc.Issues {
			if t.Number == 0 {
				continue
			}
			if _, ok := matchAny(text, messageTicketPhrases(t.Number)); !ok {
				continue
			}
			res.add(models.Edge{
				FromLabel: models.LabelMessage, FromID: m.ID,
				ToLabel: models.LabelTicket, ToID: t.ID,
				Type: models.RelReferencesGitHub,
				Properties: map[string]any{
					"referenceType": models.ReferenceMention,
					"authorMatch":   authorMatch(login, idx.ticketLogin(t)),
				},
			})
		}
	}
}

// referencesGitHubByAuthor links every message to every code change and
// ticket by the same resolved person, independent of the message text.
func (l *Linker) referencesGitHubByAuthor(doc *models.Document, idx *batchIndex, res *Result) {
	props := func() map[string]any {
		return map[string]any{
			"referenceType": models.ReferenceAuthorContext,
			"authorMatch":   true,
		}
	}
	for _, m := range doc.SlackMessages {
		login := idx.messageLogin(m)
		if login == "" {
			continue
		}
		for _, c := range doc.PullRequests {
			if !authorMatch(login, idx.codeChangeLogin(c)) {
				continue
			}
			res.add(models.Edge{
				FromLabel: models.LabelMessage, FromID: m.ID,
				ToLabel: models.LabelCodeChange, ToID: c.ID,
				Type:       models.RelReferencesGitHubByAuthor,
				Properties: props(),
			})
		}
		for _, t := range doc.Issues {
			if !authorMatch(login, idx.ticketLogin(t)) {
				continue
			}
			res.add(models.Edge{
				FromLabel: models.LabelMessage, FromID: m.ID,
				ToLabel: models.LabelTicket, ToID: t.ID,
				Type:       models.RelReferencesGitHubByAuthor,
				Properties: props(),
			})
		}
	}
}

func (l *Linker) chunkedFrom(doc *models.Document, idx *batchIndex, res *Result) {
	for _, c := range doc.TextChunks {
		label, ok := models.ParseLabel(string(c.SourceType))
		if !ok || c.SourceID == "" {
			res.skip(models.RelChunkedFrom, SkipUnknownSource)
			continue
		}
		var found bool
		switch label {
		case models.LabelCodeChange:
			_, found = idx.codeChanges[c.SourceID]
		case models.LabelTicket:
			_, found = idx.tickets[c.SourceID]
		case models.LabelMessage:
			found = idx.messages[c.SourceID]
		}
		if !found {
			res.skip(models.RelChunkedFrom, SkipUnknownSource)
			continue
		}
		res.add(models.Edge{
			FromLabel: models.LabelTextChunk, FromID: c.ID,
			ToLabel: label, ToID: c.SourceID,
			Type: models.RelChunkedFrom,
		})
	}
}
