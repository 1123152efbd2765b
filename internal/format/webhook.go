package format

import (
	"fmt"

	"github.com/rohankatakam/teamgraph/internal/models"
)

// KindComment is a PR or issue comment. Comments become text chunks of the
// entity they were left on.
const KindComment Kind = "comment"

// CommentPrefix is prepended to comment ids
const CommentPrefix = "comment-"

// Item is one raw record extracted from a webhook delivery
type Item struct {
	Kind   Kind
	Record Record
}

// Comment formats a comment record into a text chunk. The record must carry
// "source_id" and "source_type" naming the commented entity.
func Comment(r Record) (models.TextChunk, error) {
	id := r.String("id")
	if id == "" {
		return models.TextChunk{}, malformed(KindComment, "id")
	}
	sourceID := r.String("source_id")
	if sourceID == "" {
		return models.TextChunk{}, malformed(KindComment, "source_id")
	}
	label, ok := models.ParseLabel(r.String("source_type"))
	if !ok {
		return models.TextChunk{}, fmt.Errorf("%s: unknown source_type %q: %w", KindComment, r.String("source_type"), ErrMalformed)
	}
	return models.TextChunk{
		ID:         prefixed(CommentPrefix, id),
		SourceID:   sourceID,
		SourceType: label,
		Text:       r.String("body"),
	}, nil
}

// FromWebhook extracts raw records from a code-host webhook delivery. Events
// that carry no pull request or issue yield nil.
func FromWebhook(event string, payload Record) []Item {
	var items []Item

	repo := payload.Sub("repository")
	if repo != nil && repo.Has("id") {
		items = append(items, Item{Kind: KindRepository, Record: repo})
	}
	withRepo := func(r Record) Record {
		out := make(Record, len(r)+1)
		for k, v := range r {
			out[k] = v
		}
		if repo != nil && !out.Has("repository_id") {
			out["repository_id"] = repo["id"]
		}
		return out
	}
	addUser := func(r Record) {
		if u := r.Sub("user"); u != nil && u.Has("id") {
			items = append(items, Item{Kind: KindContributor, Record: u})
		}
	}

	switch event {
	case "pull_request", "pull_request_review", "pull_request_review_comment":
		pr := payload.Sub("pull_request")
		if pr == nil {
			return nil
		}
		items = append(items, Item{Kind: KindPullRequest, Record: withRepo(pr)})
		addUser(pr)
		if c := payload.Sub("comment"); c != nil {
			items = append(items, commentItem(c, pr.String("id"), models.LabelCodeChange))
			addUser(c)
		}
		if rv := payload.Sub("review"); rv != nil && rv.String("body") != "" {
			items = append(items, commentItem(rv, pr.String("id"), models.LabelCodeChange))
			addUser(rv)
		}

	case "issues", "issue_comment":
		issue := payload.Sub("issue")
		if issue == nil {
			return nil
		}
		addUser(issue)
		sourceLabel := models.LabelTicket
		sourceID := prefixed(IssuePrefix, issue.String("id"))
		if IsPullRequestIssue(issue) {
			// Comments on pull requests arrive as issue comments; the issue
			// payload lacks the pull request's own id, so only the comment
			// author is kept.
			sourceID = ""
		} else {
			items = append(items, Item{Kind: KindIssue, Record: withRepo(issue)})
		}
		if c := payload.Sub("comment"); c != nil {
			addUser(c)
			if sourceID != "" {
				items = append(items, commentItem(c, sourceID, sourceLabel))
			}
		}

	default:
		return nil
	}
	return items
}

func commentItem(c Record, sourceID string, label models.Label) Item {
	out := Record{
		"id":          c["id"],
		"body":        c["body"],
		"source_id":   sourceID,
		"source_type": string(label),
	}
	return Item{Kind: KindComment, Record: out}
}
