package models

import (
	"fmt"
	"strings"
)

// Label is a graph node label
type Label string

const (
	LabelPerson     Label = "Person"
	LabelRepository Label = "Repository"
	LabelCodeChange Label = "CodeChange"
	LabelTicket     Label = "Ticket"
	LabelChannel    Label = "Channel"
	LabelMessage    Label = "Message"
	LabelTextChunk  Label = "TextChunk"
)

// AllLabels lists every node label in import order
var AllLabels = []Label{
	LabelPerson,
	LabelRepository,
	LabelCodeChange,
	LabelTicket,
	LabelChannel,
	LabelMessage,
	LabelTextChunk,
}

// EmbeddedLabels are the labels that carry an embedding vector and can be
// searched through a vector index.
var EmbeddedLabels = []Label{
	LabelCodeChange,
	LabelTicket,
	LabelMessage,
	LabelTextChunk,
}

// VectorIndexName returns the vector index name for a label
func (l Label) VectorIndexName() string {
	return strings.ToLower(string(l)) + "_vector_idx"
}

// ParseLabel accepts canonical labels plus the names used by older documents
func ParseLabel(s string) (Label, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "person", "user":
		return LabelPerson, true
	case "repository":
		return LabelRepository, true
	case "codechange", "pullrequest", "pull_request":
		return LabelCodeChange, true
	case "ticket", "issue":
		return LabelTicket, true
	case "channel":
		return LabelChannel, true
	case "message", "slackmessage":
		return LabelMessage, true
	case "textchunk":
		return LabelTextChunk, true
	}
	return "", false
}

// RelType is a relationship type
type RelType string

const (
	RelAuthored                 RelType = "AUTHORED"
	RelBelongsTo                RelType = "BELONGS_TO"
	RelReferences               RelType = "REFERENCES"
	RelPostedIn                 RelType = "POSTED_IN"
	RelRepliesTo                RelType = "REPLIES_TO"
	RelReferencesGitHub         RelType = "REFERENCES_GITHUB"
	RelReferencesGitHubByAuthor RelType = "REFERENCES_GITHUB_BY_AUTHOR"
	RelChunkedFrom              RelType = "CHUNKED_FROM"
)

// Reference types carried on REFERENCES and REFERENCES_GITHUB* edges
const (
	ReferenceFixes         = "fixes"
	ReferenceRelated       = "related"
	ReferenceMention       = "mention"
	ReferenceAuthorContext = "author_context"
)

// Edge is a directed, typed relationship between two nodes
type Edge struct {
	FromLabel  Label
	FromID     string
	ToLabel    Label
	ToID       string
	Type       RelType
	Properties map[string]any
}

// Description is the summary key for an edge, e.g. "Person-AUTHORED->CodeChange"
func (e Edge) Description() string {
	return fmt.Sprintf("%s-%s->%s", e.FromLabel, e.Type, e.ToLabel)
}

// Key identifies an edge for merge purposes
func (e Edge) Key() string {
	return fmt.Sprintf("%s:%s|%s|%s:%s", e.FromLabel, e.FromID, e.Type, e.ToLabel, e.ToID)
}
