package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	teamerrors "github.com/rohankatakam/teamgraph/internal/errors"
	"github.com/rohankatakam/teamgraph/internal/format"
)

// Source is the staging source name for code-host records
const Source = "github"

// Stager receives raw records as they are fetched
type Stager interface {
	Put(ctx context.Context, source string, kind format.Kind, records []format.Record) (int, error)
}

// Fetcher pulls repository data from the GitHub API into raw records
type Fetcher struct {
	client      *github.Client
	rateLimiter *rate.Limiter
	stager      Stager
	logger      *slog.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithBaseURL points the fetcher at a GitHub Enterprise or test server
func WithBaseURL(baseURL string) Option {
	return func(f *Fetcher) {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			f.logger.Warn("ignoring invalid base url", "url", baseURL, "error", err)
			return
		}
		f.client.BaseURL = u
	}
}

// WithRateLimit overrides the default one request per second
func WithRateLimit(limit rate.Limit) Option {
	return func(f *Fetcher) {
		f.rateLimiter = rate.NewLimiter(limit, 1)
	}
}

// WithStager writes each fetched page to a staging store
func WithStager(s Stager) Option {
	return func(f *Fetcher) {
		f.stager = s
	}
}

// NewFetcher creates a GitHub API fetcher. An empty token makes
// unauthenticated requests.
func NewFetcher(token string, opts ...Option) *Fetcher {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	// GitHub allows 5,000 requests/hour; stay at 1 req/sec
	f := &Fetcher{
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Every(1*time.Second), 1),
		logger:      slog.Default().With("component", "github_fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchStats tracks fetching statistics
type FetchStats struct {
	Issues       int
	PRs          int
	Contributors int
	Staged       int
}

// FetchAll fetches the repository, its contributors, pull requests and
// issues. Contributor failures are logged and do not abort the fetch.
func (f *Fetcher) FetchAll(ctx context.Context, owner, repo string) (format.RawBatch, *FetchStats, error) {
	f.logger.Info("fetching repository", "owner", owner, "repo", repo)
	batch := make(format.RawBatch)
	stats := &FetchStats{}

	repoID, err := f.FetchRepository(ctx, owner, repo, batch)
	if err != nil {
		return nil, stats, err
	}

	n, err := f.FetchContributors(ctx, owner, repo, batch)
	if err != nil {
		f.logger.Warn("failed to fetch contributors", "error", err)
	}
	stats.Contributors = n

	if stats.PRs, err = f.FetchPullRequests(ctx, repoID, owner, repo, batch); err != nil {
		return nil, stats, err
	}
	if stats.Issues, err = f.FetchIssues(ctx, repoID, owner, repo, batch); err != nil {
		return nil, stats, err
	}

	if f.stager != nil {
		for _, kind := range format.AllKinds {
			if len(batch[kind]) == 0 {
				continue
			}
			staged, err := f.stager.Put(ctx, Source, kind, batch[kind])
			if err != nil {
				return nil, stats, err
			}
			stats.Staged += staged
		}
	}

	f.logger.Info("fetch complete",
		"repo", owner+"/"+repo,
		"prs", stats.PRs,
		"issues", stats.Issues,
		"contributors", stats.Contributors)
	return batch, stats, nil
}

// FetchRepository adds the repository record and returns its numeric id
func (f *Fetcher) FetchRepository(ctx context.Context, owner, repo string, batch format.RawBatch) (int64, error) {
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return 0, err
	}
	r, resp, err := f.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return 0, teamerrors.SourceErrorf(err, "fetch repository %s/%s", owner, repo)
	}
	f.logRateLimit(resp)

	record, err := toRecord(r)
	if err != nil {
		return 0, err
	}
	batch.Add(format.KindRepository, record)
	return r.GetID(), nil
}

// FetchContributors adds one record per repository contributor
func (f *Fetcher) FetchContributors(ctx context.Context, owner, repo string, batch format.RawBatch) (int, error) {
	opts := &github.ListContributorsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	count := 0
	for {
		if err := f.rateLimiter.Wait(ctx); err != nil {
			return count, err
		}
		contributors, resp, err := f.client.Repositories.ListContributors(ctx, owner, repo, opts)
		if err != nil {
			return count, teamerrors.SourceErrorf(err, "list contributors for %s/%s", owner, repo)
		}

		for _, c := range contributors {
			record, err := toRecord(c)
			if err != nil {
				f.logger.Warn("skipping contributor", "login", c.GetLogin(), "error", err)
				continue
			}
			batch.Add(format.KindContributor, record)
			count++
		}

		f.logRateLimit(resp)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return count, nil
}

// FetchPullRequests adds every pull request in any state
func (f *Fetcher) FetchPullRequests(ctx context.Context, repoID int64, owner, repo string, batch format.RawBatch) (int, error) {
	opts := &github.PullRequestListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	count := 0
	for {
		if err := f.rateLimiter.Wait(ctx); err != nil {
			return count, err
		}
		prs, resp, err := f.client.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return count, teamerrors.SourceErrorf(err, "list pull requests for %s/%s", owner, repo)
		}

		for _, pr := range prs {
			record, err := toRecord(pr)
			if err != nil {
				f.logger.Warn("skipping pull request", "number", pr.GetNumber(), "error", err)
				continue
			}
			record["repository_id"] = repoID
			batch.Add(format.KindPullRequest, record)
			count++
		}

		f.logRateLimit(resp)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return count, nil
}

// FetchIssues adds every issue in any state. The issues endpoint also
// returns pull requests; those are skipped here.
func (f *Fetcher) FetchIssues(ctx context.Context, repoID int64, owner, repo string, batch format.RawBatch) (int, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	count := 0
	for {
		if err := f.rateLimiter.Wait(ctx); err != nil {
			return count, err
		}
		issues, resp, err := f.client.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			return count, teamerrors.SourceErrorf(err, "list issues for %s/%s", owner, repo)
		}

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			record, err := toRecord(issue)
			if err != nil {
				f.logger.Warn("skipping issue", "number", issue.GetNumber(), "error", err)
				continue
			}
			record["repository_id"] = repoID
			batch.Add(format.KindIssue, record)
			count++
		}

		f.logRateLimit(resp)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return count, nil
}

// logRateLimit warns when the remaining API quota gets low
func (f *Fetcher) logRateLimit(resp *github.Response) {
	if resp == nil {
		return
	}
	if resp.Rate.Remaining < 100 && resp.Rate.Limit > 0 {
		f.logger.Warn("rate limit low", "remaining", resp.Rate.Remaining, "limit", resp.Rate.Limit)
	}
}

// ParseRepo splits "owner/name"
func ParseRepo(s string) (owner, name string, err error) {
	parts := strings.Split(strings.TrimSuffix(strings.TrimSpace(s), ".git"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", teamerrors.ValidationErrorf("repository must be owner/name, got %q", s)
	}
	return parts[0], parts[1], nil
}

// toRecord converts an API object into its raw JSON record form
func toRecord(v any) (format.Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var record format.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return record, nil
}
