package format

import (
	"log/slog"

	"github.com/rohankatakam/teamgraph/internal/models"
)

// RawBatch groups raw records by shape
type RawBatch map[Kind][]Record

// Add appends a record of the given kind
func (b RawBatch) Add(kind Kind, r Record) {
	b[kind] = append(b[kind], r)
}

// Len returns the total number of records in the batch
func (b RawBatch) Len() int {
	n := 0
	for _, rs := range b {
		n += len(rs)
	}
	return n
}

// Stats counts formatted and dropped records per shape
type Stats struct {
	Formatted map[Kind]int
	Dropped   map[Kind]int
	Skipped   map[Kind]int
}

func newStats() Stats {
	return Stats{
		Formatted: make(map[Kind]int),
		Dropped:   make(map[Kind]int),
		Skipped:   make(map[Kind]int),
	}
}

// FormatAll converts a raw batch into an ingestion document. Malformed
// records are dropped and logged; the rest of the batch continues. Issue
// records that are really pull requests are skipped.
func FormatAll(b RawBatch) (*models.Document, Stats) {
	logger := slog.Default().With("component", "format")
	stats := newStats()
	doc := &models.Document{}

	drop := func(kind Kind, err error) {
		stats.Dropped[kind]++
		logger.Warn("dropping malformed record", "kind", kind, "error", err)
	}

	for _, r := range b[KindRepository] {
		repo, err := Repository(r)
		if err != nil {
			drop(KindRepository, err)
			continue
		}
		doc.Repositories = append(doc.Repositories, repo)
		stats.Formatted[KindRepository]++
	}

	seenPeople := make(map[string]bool)
	for _, r := range b[KindContributor] {
		p, err := Contributor(r)
		if err != nil {
			drop(KindContributor, err)
			continue
		}
		if seenPeople[p.ID] {
			stats.Skipped[KindContributor]++
			continue
		}
		seenPeople[p.ID] = true
		doc.Users = append(doc.Users, p)
		stats.Formatted[KindContributor]++
	}

	for _, r := range b[KindPullRequest] {
		c, err := PullRequest(r)
		if err != nil {
			drop(KindPullRequest, err)
			continue
		}
		doc.PullRequests = append(doc.PullRequests, c)
		stats.Formatted[KindPullRequest]++
	}

	for _, r := range b[KindIssue] {
		if IsPullRequestIssue(r) {
			stats.Skipped[KindIssue]++
			continue
		}
		t, err := Issue(r)
		if err != nil {
			drop(KindIssue, err)
			continue
		}
		doc.Issues = append(doc.Issues, t)
		stats.Formatted[KindIssue]++
	}

	for _, r := range b[KindChannel] {
		c, err := Channel(r)
		if err != nil {
			drop(KindChannel, err)
			continue
		}
		doc.SlackChannels = append(doc.SlackChannels, c)
		stats.Formatted[KindChannel]++
	}

	for _, r := range b[KindMessage] {
		m, err := Message(r, "")
		if err != nil {
			drop(KindMessage, err)
			continue
		}
		doc.SlackMessages = append(doc.SlackMessages, m)
		stats.Formatted[KindMessage]++
	}

	for _, r := range b[KindComment] {
		c, err := Comment(r)
		if err != nil {
			drop(KindComment, err)
			continue
		}
		doc.TextChunks = append(doc.TextChunks, c)
		stats.Formatted[KindComment]++
	}

	logger.Debug("formatted raw batch",
		"records", b.Len(),
		"dropped", sum(stats.Dropped),
		"skipped", sum(stats.Skipped))
	return doc, stats
}

func sum(m map[Kind]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
