package identity

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/teamgraph/internal/models"
)

// rawIDPattern matches platform-assigned member ids such as U08ABCDEF12
var rawIDPattern = regexp.MustCompile(`^[UW][A-Z0-9]{8,}$`)

// IsRawPlatformID reports whether a handle looks like an opaque messaging
// platform id rather than a human-readable name.
func IsRawPlatformID(handle string) bool {
	return rawIDPattern.MatchString(handle)
}

// Entry links one person's code-host login to their messaging identity
type Entry struct {
	GitHubLogin string `yaml:"github_login" json:"githubLogin"`
	SlackHandle string `yaml:"slack_handle" json:"slackHandle"`
	SlackUserID string `yaml:"slack_user_id,omitempty" json:"slackUserId,omitempty"`
	PersonID    string `yaml:"person_id,omitempty" json:"personId,omitempty"`
	DisplayName string `yaml:"display_name,omitempty" json:"displayName,omitempty"`
	Email       string `yaml:"email,omitempty" json:"email,omitempty"`
}

// CrossReference is the curated login <-> handle table. Lookups are
// case-insensitive.
type CrossReference struct {
	byLogin  map[string]Entry
	byHandle map[string]Entry
	byUserID map[string]Entry
}

type crossReferenceFile struct {
	People []Entry `yaml:"people"`
}

// NewCrossReference builds a table from entries. Later entries win on
// conflicting keys.
func NewCrossReference(entries ...Entry) *CrossReference {
	x := &CrossReference{
		byLogin:  make(map[string]Entry),
		byHandle: make(map[string]Entry),
		byUserID: make(map[string]Entry),
	}
	for _, e := range entries {
		if e.GitHubLogin != "" {
			x.byLogin[fold(e.GitHubLogin)] = e
		}
		if e.SlackHandle != "" {
			x.byHandle[fold(e.SlackHandle)] = e
		}
		if e.SlackUserID != "" {
			x.byUserID[e.SlackUserID] = e
		}
	}
	return x
}

// LoadCrossReference reads a YAML table of the form
//
//	people:
//	  - github_login: alice
//	    slack_handle: alice.s
func LoadCrossReference(path string) (*CrossReference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cross-reference table: %w", err)
	}
	var f crossReferenceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cross-reference table %s: %w", path, err)
	}
	return NewCrossReference(f.People...), nil
}

// Len returns the number of distinct logins in the table
func (x *CrossReference) Len() int {
	if x == nil {
		return 0
	}
	return len(x.byLogin)
}

// ByLogin looks up an entry by code-host login
func (x *CrossReference) ByLogin(login string) (Entry, bool) {
	if x == nil || login == "" {
		return Entry{}, false
	}
	e, ok := x.byLogin[fold(login)]
	return e, ok
}

// ByHandle looks up an entry by messaging handle, falling back to the raw
// platform user id.
func (x *CrossReference) ByHandle(handle string) (Entry, bool) {
	if x == nil || handle == "" {
		return Entry{}, false
	}
	if e, ok := x.byHandle[fold(handle)]; ok {
		return e, true
	}
	e, ok := x.byUserID[handle]
	return e, ok
}

// Normalizer resolves source identities onto canonical Persons. It holds the
// cross-reference table and the Person index of one ingestion batch.
type Normalizer struct {
	xref    *CrossReference
	byLogin map[string]models.Person
	byID    map[string]models.Person
}

// NewNormalizer indexes people by login and id. A nil table is valid; only
// login-name matching is then available.
func NewNormalizer(xref *CrossReference, people []models.Person) *Normalizer {
	n := &Normalizer{
		xref:    xref,
		byLogin: make(map[string]models.Person, len(people)),
		byID:    make(map[string]models.Person, len(people)),
	}
	for _, p := range people {
		if p.DisplayLogin != "" {
			n.byLogin[fold(p.DisplayLogin)] = p
		}
		if p.ID != "" {
			n.byID[p.ID] = p
		}
	}
	return n
}

// EnrichPerson attaches the messaging handle (and missing contact fields)
// from the cross-reference table. The record is returned unchanged when the
// login has no mapping.
func (n *Normalizer) EnrichPerson(p models.Person) models.Person {
	e, ok := n.xref.ByLogin(p.DisplayLogin)
	if !ok {
		return p
	}
	if p.MessagingHandle == "" {
		p.MessagingHandle = e.SlackHandle
	}
	if p.DisplayName == "" {
		p.DisplayName = e.DisplayName
	}
	if p.Email == "" {
		p.Email = e.Email
	}
	return p
}

// EnrichMessage resolves the message author onto a Person: first through the
// cross-reference table, then by matching the handle against a known login.
// Unresolved authorship is returned as-is.
func (n *Normalizer) EnrichMessage(m models.Message) models.Message {
	if m.SourceAuthorHandle == "" {
		return m
	}

	login := ""
	personID := ""
	if e, ok := n.xref.ByHandle(m.SourceAuthorHandle); ok {
		login = e.GitHubLogin
		personID = e.PersonID
	} else if p, ok := n.byLogin[fold(m.SourceAuthorHandle)]; ok {
		login = p.DisplayLogin
		personID = p.ID
	}
	if login == "" {
		return m
	}

	if personID == "" {
		if p, ok := n.byLogin[fold(login)]; ok {
			personID = p.ID
		}
	}
	if m.AuthorLogin == "" {
		m.AuthorLogin = login
	}
	if m.AuthorID == "" && personID != "" {
		m.AuthorID = personID
	}
	return m
}

// LoginFor returns the code-host login of a Person id in this batch
func (n *Normalizer) LoginFor(personID string) string {
	return n.byID[personID].DisplayLogin
}

// EnrichDocument applies the enrichers to every Person and Message and fills
// authorLogin on code changes and tickets from their authorId. The input
// document is not modified.
func (n *Normalizer) EnrichDocument(doc *models.Document) (*models.Document, Stats) {
	out := *doc
	var stats Stats

	out.Users = make([]models.Person, len(doc.Users))
	for i, p := range doc.Users {
		out.Users[i] = n.EnrichPerson(p)
		if out.Users[i].MessagingHandle != "" {
			stats.PeopleLinked++
		}
	}

	out.SlackMessages = make([]models.Message, len(doc.SlackMessages))
	for i, m := range doc.SlackMessages {
		out.SlackMessages[i] = n.EnrichMessage(m)
		if out.SlackMessages[i].AuthorLogin != "" {
			stats.MessagesResolved++
		} else {
			stats.MessagesUnresolved++
		}
	}

	out.PullRequests = make([]models.CodeChange, len(doc.PullRequests))
	for i, c := range doc.PullRequests {
		if c.AuthorLogin == "" {
			c.AuthorLogin = n.LoginFor(c.AuthorID)
		}
		out.PullRequests[i] = c
	}

	out.Issues = make([]models.Ticket, len(doc.Issues))
	for i, t := range doc.Issues {
		if t.AuthorLogin == "" {
			t.AuthorLogin = n.LoginFor(t.AuthorID)
		}
		out.Issues[i] = t
	}

	return &out, stats
}

// Stats counts how many records were resolved during EnrichDocument
type Stats struct {
	PeopleLinked       int
	MessagesResolved   int
	MessagesUnresolved int
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
