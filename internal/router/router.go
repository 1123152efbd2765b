// Package router picks which vector index a free-text question should be
// searched against. It never calls the embedding or generation services.
package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rohankatakam/teamgraph/internal/models"
)

// ErrNoIndex means no label has any embedded node
var ErrNoIndex = errors.New("no vector index available: no embedded nodes for any entity type")

// Decision is the routing result
type Decision struct {
	Label     models.Label `json:"label"`
	IndexName string       `json:"indexName"`
	Reason    string       `json:"reason"`
	Found     bool         `json:"found"`
}

// Err returns ErrNoIndex when nothing could be routed
func (d Decision) Err() error {
	if !d.Found {
		return ErrNoIndex
	}
	return nil
}

type phraseRule struct {
	label   models.Label
	phrases []string
	reason  string
}

// Checked in order; first match with an embedded label wins.
var phraseRules = []phraseRule{
	{
		label:   models.LabelTicket,
		phrases: []string{"who reported", "issue reporter", "bug report", "filed an issue"},
		reason:  "Query specifically asks about issues",
	},
	{
		label:   models.LabelCodeChange,
		phrases: []string{"who wrote", "who implemented", "who coded", "who developed", "oauth", "integration", "author"},
		reason:  "Query asks about code authorship or implementation",
	},
	{
		label:   models.LabelMessage,
		phrases: []string{"who said", "who mentioned", "who discussed", "who talked", "conversation", "chat", "slack"},
		reason:  "Query asks about discussions or conversations",
	},
}

var keywords = map[models.Label][]string{
	models.LabelCodeChange: {"pr", "pull request", "code change", "merge", "branch", "commit", "git",
		"repository", "repo", "developer", "contribution", "feature", "oauth", "implementation"},
	models.LabelTicket: {"issue", "bug", "ticket", "problem", "task", "feature request", "enhancement",
		"error", "defect", "tracker"},
	models.LabelMessage: {"chat", "slack", "message", "conversation", "discussion", "said", "mentioned",
		"talk", "channel", "communication", "discuss"},
	models.LabelTextChunk: {},
}

// scoring ties go to the earlier label
var tiePriority = []models.Label{
	models.LabelCodeChange,
	models.LabelTicket,
	models.LabelMessage,
	models.LabelTextChunk,
}

var fallbackOrder = []models.Label{
	models.LabelTextChunk,
	models.LabelCodeChange,
	models.LabelTicket,
	models.LabelMessage,
}

func decide(label models.Label, reason string) Decision {
	return Decision{Label: label, IndexName: label.VectorIndexName(), Reason: reason, Found: true}
}

// Route chooses a label for query given embedded-node counts per label.
// Labels absent from available count as zero.
func Route(query string, available map[models.Label]int) Decision {
	q := strings.ToLower(query)

	for _, rule := range phraseRules {
		if available[rule.label] > 0 && containsAny(q, rule.phrases) {
			return decide(rule.label, rule.reason)
		}
	}

	best, bestScore := models.Label(""), 0
	for _, label := range tiePriority {
		if available[label] <= 0 {
			continue
		}
		score := countHits(q, keywords[label])
		if score > bestScore {
			best, bestScore = label, score
		}
	}
	if bestScore > 0 {
		return decide(best, fmt.Sprintf("Query contains %d keywords related to %s", bestScore, best))
	}

	for _, label := range fallbackOrder {
		if available[label] > 0 {
			return decide(label, fmt.Sprintf("Fallback to %s based on available data", label))
		}
	}

	return Decision{Reason: "No embedded nodes available for any entity type"}
}

func containsAny(q string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

func countHits(q string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(q, w) {
			n++
		}
	}
	return n
}
