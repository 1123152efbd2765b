package models

import "strings"

// Person is a canonical human identity spanning the code host and the
// messaging platform.
type Person struct {
	ID              string    `json:"id"`
	DisplayLogin    string    `json:"displayLogin"`
	MessagingHandle string    `json:"messagingHandle,omitempty"`
	DisplayName     string    `json:"displayName"`
	Email           string    `json:"email,omitempty"`
	Embedding       []float32 `json:"embedding,omitempty"`
}

// Repository represents a code-host repository
type Repository struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	FullName    string    `json:"fullName"`
	Description string    `json:"description"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// CodeChange represents a pull request
type CodeChange struct {
	ID           string    `json:"id"`
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	State        string    `json:"state"` // open, closed, merged
	CreatedAt    string    `json:"createdAt"`
	AuthorID     string    `json:"authorId,omitempty"`
	AuthorLogin  string    `json:"authorLogin,omitempty"`
	RepositoryID string    `json:"repositoryId,omitempty"`
	URL          string    `json:"url,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
}

// Ticket represents an issue
type Ticket struct {
	ID           string    `json:"id"`
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	State        string    `json:"state"` // open, closed
	CreatedAt    string    `json:"createdAt"`
	AuthorID     string    `json:"authorId,omitempty"`
	AuthorLogin  string    `json:"authorLogin,omitempty"`
	RepositoryID string    `json:"repositoryId,omitempty"`
	URL          string    `json:"url,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
}

// Channel represents a messaging-platform channel
type Channel struct {
	ID              string    `json:"id"`
	SourceChannelID string    `json:"sourceChannelId"`
	Name            string    `json:"name"`
	IsPrivate       bool      `json:"isPrivate"`
	Embedding       []float32 `json:"embedding,omitempty"`
}

// Message represents a single channel message. Timestamps are ISO-8601 UTC
// strings with millisecond precision and a trailing Z.
type Message struct {
	ID                    string    `json:"id"`
	SourceAuthorHandle    string    `json:"sourceAuthorHandle"`
	ChannelID             string    `json:"channelId"`
	Text                  string    `json:"text"`
	ThreadParentTimestamp string    `json:"threadParentTimestamp,omitempty"`
	CreatedAt             string    `json:"createdAt"`
	AuthorID              string    `json:"authorId,omitempty"`
	AuthorLogin           string    `json:"authorLogin,omitempty"`
	Embedding             []float32 `json:"embedding,omitempty"`
}

// ThreadKey returns the timestamp identifying the thread root, without the
// trailing Z so both marker forms land in the same thread
func (m Message) ThreadKey() string {
	ts := m.CreatedAt
	if m.ThreadParentTimestamp != "" {
		ts = m.ThreadParentTimestamp
	}
	return strings.TrimSuffix(ts, "Z")
}

// TextChunk is a derived excerpt of a source entity used for embedding
type TextChunk struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"sourceId"`
	SourceType Label     `json:"sourceType"` // CodeChange, Ticket, Message
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
}
