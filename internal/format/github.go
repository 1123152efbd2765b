package format

import (
	"strings"

	"github.com/rohankatakam/teamgraph/internal/models"
)

// Entity id prefixes
const (
	RepoPrefix  = "repo-"
	IssuePrefix = "issue-"
	UserPrefix  = "user-"
)

func prefixed(prefix, id string) string {
	if id == "" || strings.HasPrefix(id, prefix) {
		return id
	}
	return prefix + id
}

// Repository formats a repository record
func Repository(r Record) (models.Repository, error) {
	id := r.String("id")
	if id == "" {
		return models.Repository{}, malformed(KindRepository, "id")
	}
	fullName := r.first("full_name", "fullName", "fullname")
	name := r.String("name")
	if name == "" && fullName != "" {
		if i := strings.LastIndex(fullName, "/"); i >= 0 {
			name = fullName[i+1:]
		} else {
			name = fullName
		}
	}
	return models.Repository{
		ID:          prefixed(RepoPrefix, id),
		Name:        name,
		FullName:    fullName,
		Description: r.String("description"),
	}, nil
}

// Contributor formats a code-host user record
func Contributor(r Record) (models.Person, error) {
	id := r.String("id")
	if id == "" {
		return models.Person{}, malformed(KindContributor, "id")
	}
	login := r.String("login")
	return models.Person{
		ID:           prefixed(UserPrefix, id),
		DisplayLogin: login,
		DisplayName:  r.first("name", "login"),
		Email:        r.String("email"),
	}, nil
}

// author extracts the author's person id and login from a record's "user"
func author(r Record) (id, login string) {
	u := r.Sub("user")
	if u == nil {
		return prefixed(UserPrefix, r.String("author_id")), r.first("author_login", "author")
	}
	return prefixed(UserPrefix, u.String("id")), u.String("login")
}

func repositoryID(r Record) string {
	if repo := r.Sub("repository"); repo != nil {
		return prefixed(RepoPrefix, repo.String("id"))
	}
	if base := r.Sub("base"); base != nil {
		if repo := base.Sub("repo"); repo != nil {
			return prefixed(RepoPrefix, repo.String("id"))
		}
	}
	return prefixed(RepoPrefix, r.String("repository_id"))
}

// PullRequestState maps a code-host state to open, closed or merged.
// Unknown states are treated as open.
func PullRequestState(r Record) string {
	state := strings.ToLower(r.String("state"))
	switch state {
	case "merged":
		return "merged"
	case "closed":
		if r.Bool("merged") || r.Has("merged_at") {
			return "merged"
		}
		return "closed"
	default:
		return "open"
	}
}

// PullRequest formats a pull request record. The code change keeps the
// source's own id string and its raw number.
func PullRequest(r Record) (models.CodeChange, error) {
	id := r.String("id")
	if id == "" {
		return models.CodeChange{}, malformed(KindPullRequest, "id")
	}
	authorID, login := author(r)
	return models.CodeChange{
		ID:           id,
		Number:       r.Int("number"),
		Title:        r.String("title"),
		Body:         r.String("body"),
		State:        PullRequestState(r),
		CreatedAt:    normalizeTime(r.String("created_at")),
		AuthorID:     authorID,
		AuthorLogin:  login,
		RepositoryID: repositoryID(r),
		URL:          r.String("html_url"),
	}, nil
}

// Issue formats an issue record
func Issue(r Record) (models.Ticket, error) {
	id := r.String("id")
	if id == "" {
		return models.Ticket{}, malformed(KindIssue, "id")
	}
	state := "open"
	if strings.EqualFold(r.String("state"), "closed") {
		state = "closed"
	}
	authorID, login := author(r)
	return models.Ticket{
		ID:           prefixed(IssuePrefix, id),
		Number:       r.Int("number"),
		Title:        r.String("title"),
		Body:         r.String("body"),
		State:        state,
		CreatedAt:    normalizeTime(r.String("created_at")),
		AuthorID:     authorID,
		AuthorLogin:  login,
		RepositoryID: repositoryID(r),
		URL:          r.String("html_url"),
	}, nil
}

// IsPullRequestIssue reports whether an issues-endpoint record is really a
// pull request.
func IsPullRequestIssue(r Record) bool {
	return r.Has("pull_request")
}
