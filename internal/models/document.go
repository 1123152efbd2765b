package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Document is the ingestion input: one array per entity collection
type Document struct {
	Users         []Person     `json:"users"`
	Repositories  []Repository `json:"repositories"`
	PullRequests  []CodeChange `json:"pullRequests"`
	Issues        []Ticket     `json:"issues"`
	SlackChannels []Channel    `json:"slackChannels"`
	SlackMessages []Message    `json:"slackMessages"`
	TextChunks    []TextChunk  `json:"textChunks"`
}

// LoadDocument reads a JSON ingestion document from disk
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document %s: %w", path, err)
	}
	return &doc, nil
}

// Save writes the document as indented JSON, creating parent directories
func (d *Document) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Merge appends every collection of other onto d
func (d *Document) Merge(other *Document) {
	if other == nil {
		return
	}
	d.Users = append(d.Users, other.Users...)
	d.Repositories = append(d.Repositories, other.Repositories...)
	d.PullRequests = append(d.PullRequests, other.PullRequests...)
	d.Issues = append(d.Issues, other.Issues...)
	d.SlackChannels = append(d.SlackChannels, other.SlackChannels...)
	d.SlackMessages = append(d.SlackMessages, other.SlackMessages...)
	d.TextChunks = append(d.TextChunks, other.TextChunks...)
}

// Nodes returns every entity as a graph node, grouped by label in import order
func (d *Document) Nodes() map[Label][]Node {
	out := make(map[Label][]Node, len(AllLabels))
	for _, p := range d.Users {
		out[LabelPerson] = append(out[LabelPerson], p.Node())
	}
	for _, r := range d.Repositories {
		out[LabelRepository] = append(out[LabelRepository], r.Node())
	}
	for _, c := range d.PullRequests {
		out[LabelCodeChange] = append(out[LabelCodeChange], c.Node())
	}
	for _, t := range d.Issues {
		out[LabelTicket] = append(out[LabelTicket], t.Node())
	}
	for _, c := range d.SlackChannels {
		out[LabelChannel] = append(out[LabelChannel], c.Node())
	}
	for _, m := range d.SlackMessages {
		out[LabelMessage] = append(out[LabelMessage], m.Node())
	}
	for _, c := range d.TextChunks {
		out[LabelTextChunk] = append(out[LabelTextChunk], c.Node())
	}
	return out
}

// Older documents used platform-specific field names. The decoders below
// accept them alongside the canonical names.

func (p *Person) UnmarshalJSON(data []byte) error {
	type plain Person
	var aux struct {
		plain
		GitHubLogin string `json:"githubLogin"`
		Login       string `json:"login"`
		SlackHandle string `json:"slackHandle"`
		Name        string `json:"name"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Person(aux.plain)
	p.DisplayLogin = firstNonEmpty(p.DisplayLogin, aux.GitHubLogin, aux.Login)
	p.MessagingHandle = firstNonEmpty(p.MessagingHandle, aux.SlackHandle)
	p.DisplayName = firstNonEmpty(p.DisplayName, aux.Name)
	return nil
}

func (r *Repository) UnmarshalJSON(data []byte) error {
	type plain Repository
	var aux struct {
		plain
		FullNameSnake string `json:"full_name"`
		FullNameFlat  string `json:"fullname"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Repository(aux.plain)
	r.FullName = firstNonEmpty(r.FullName, aux.FullNameSnake, aux.FullNameFlat)
	return nil
}

func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var aux struct {
		plain
		ThreadTs string `json:"threadTs"`
		User     string `json:"user"`
		UserName string `json:"userName"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Message(aux.plain)
	m.ThreadParentTimestamp = firstNonEmpty(m.ThreadParentTimestamp, aux.ThreadTs)
	m.SourceAuthorHandle = firstNonEmpty(m.SourceAuthorHandle, aux.UserName, aux.User)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
