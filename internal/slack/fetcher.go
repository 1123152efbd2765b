package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"

	teamerrors "github.com/rohankatakam/teamgraph/internal/errors"
	"github.com/rohankatakam/teamgraph/internal/format"
)

// Source is the staging source name for messaging records
const Source = "slack"

const pageSize = 200

// Stager receives raw records as they are fetched
type Stager interface {
	Put(ctx context.Context, source string, kind format.Kind, records []format.Record) (int, error)
}

// Fetcher pulls channel history from the Slack Web API into raw records
type Fetcher struct {
	api        *slack.Client
	stager     Stager
	logger     *slog.Logger
	maxRetries int
	apiOptions []slack.Option

	users map[string]string // user id -> handle
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithAPIURL points the client at a test server. The url must end in "/".
func WithAPIURL(url string) Option {
	return func(f *Fetcher) {
		f.apiOptions = append(f.apiOptions, slack.OptionAPIURL(url))
	}
}

// WithStager writes fetched records to a staging store
func WithStager(s Stager) Option {
	return func(f *Fetcher) {
		f.stager = s
	}
}

// FetchOptions limits what is fetched per channel
type FetchOptions struct {
	Oldest      time.Time // zero fetches full history
	SkipReplies bool
}

// FetchStats tracks fetching statistics
type FetchStats struct {
	Channels int
	Messages int
	Replies  int
	Users    int
	Staged   int
}

// NewFetcher creates a Slack fetcher for a bot or user token
func NewFetcher(token string, opts ...Option) *Fetcher {
	f := &Fetcher{
		logger:     slog.Default().With("component", "slack_fetcher"),
		maxRetries: 3,
		users:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.api = slack.New(token, f.apiOptions...)
	return f
}

// FetchChannels fetches every named channel with its history and thread
// replies. Every message record carries its "channel" and, when the
// author resolves, a "user_info" with the author's handle.
func (f *Fetcher) FetchChannels(ctx context.Context, channelIDs []string, opts FetchOptions) (format.RawBatch, *FetchStats, error) {
	batch := make(format.RawBatch)
	stats := &FetchStats{}

	for _, channelID := range channelIDs {
		if err := f.fetchChannel(ctx, channelID, opts, batch, stats); err != nil {
			return nil, stats, err
		}
	}
	stats.Users = len(f.users)

	if f.stager != nil {
		for _, kind := range []format.Kind{format.KindChannel, format.KindMessage} {
			if len(batch[kind]) == 0 {
				continue
			}
			n, err := f.stager.Put(ctx, Source, kind, batch[kind])
			if err != nil {
				return nil, stats, err
			}
			stats.Staged += n
		}
	}

	f.logger.Info("fetch complete",
		"channels", stats.Channels,
		"messages", stats.Messages,
		"replies", stats.Replies,
		"users", stats.Users)
	return batch, stats, nil
}

func (f *Fetcher) fetchChannel(ctx context.Context, channelID string, opts FetchOptions, batch format.RawBatch, stats *FetchStats) error {
	var info *slack.Channel
	err := f.retry(ctx, func() error {
		var err error
		info, err = f.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
		return err
	})
	if err != nil {
		return teamerrors.SourceErrorf(err, "channel info %s", channelID)
	}
	record, err := toRecord(info)
	if err != nil {
		return err
	}
	batch.Add(format.KindChannel, record)
	stats.Channels++

	params := &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     pageSize,
	}
	if !opts.Oldest.IsZero() {
		params.Oldest = fmt.Sprintf("%d.000000", opts.Oldest.Unix())
	}

	for {
		var resp *slack.GetConversationHistoryResponse
		err := f.retry(ctx, func() error {
			var err error
			resp, err = f.api.GetConversationHistoryContext(ctx, params)
			return err
		})
		if err != nil {
			return teamerrors.SourceErrorf(err, "history for %s", channelID)
		}

		for _, msg := range resp.Messages {
			if err := f.addMessage(ctx, channelID, msg, batch); err != nil {
				return err
			}
			stats.Messages++

			if opts.SkipReplies || msg.ReplyCount == 0 {
				continue
			}
			n, err := f.fetchReplies(ctx, channelID, msg.Timestamp, batch)
			if err != nil {
				return err
			}
			stats.Replies += n
		}

		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			break
		}
		params.Cursor = resp.ResponseMetaData.NextCursor
	}
	return nil
}

// fetchReplies adds the replies of one thread. The parent, which the API
// returns first, is already in the batch.
func (f *Fetcher) fetchReplies(ctx context.Context, channelID, threadTS string, batch format.RawBatch) (int, error) {
	params := &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Limit:     pageSize,
	}

	count := 0
	for {
		var (
			msgs       []slack.Message
			hasMore    bool
			nextCursor string
		)
		err := f.retry(ctx, func() error {
			var err error
			msgs, hasMore, nextCursor, err = f.api.GetConversationRepliesContext(ctx, params)
			return err
		})
		if err != nil {
			return count, teamerrors.SourceErrorf(err, "replies for %s/%s", channelID, threadTS)
		}

		for _, msg := range msgs {
			if msg.Timestamp == threadTS {
				continue
			}
			if err := f.addMessage(ctx, channelID, msg, batch); err != nil {
				return count, err
			}
			count++
		}

		if !hasMore || nextCursor == "" {
			break
		}
		params.Cursor = nextCursor
	}
	return count, nil
}

func (f *Fetcher) addMessage(ctx context.Context, channelID string, msg slack.Message, batch format.RawBatch) error {
	record, err := toRecord(msg)
	if err != nil {
		return err
	}
	record["channel"] = channelID
	if msg.User != "" {
		if handle := f.userHandle(ctx, msg.User); handle != "" {
			record["user_info"] = map[string]any{"id": msg.User, "name": handle}
		}
	}
	batch.Add(format.KindMessage, record)
	return nil
}

// userHandle resolves a user id to its handle. Lookup failures fall back
// to the raw id downstream.
func (f *Fetcher) userHandle(ctx context.Context, userID string) string {
	if handle, ok := f.users[userID]; ok {
		return handle
	}
	var user *slack.User
	err := f.retry(ctx, func() error {
		var err error
		user, err = f.api.GetUserInfoContext(ctx, userID)
		return err
	})
	if err != nil {
		f.logger.Warn("user lookup failed", "user", userID, "error", err)
		f.users[userID] = ""
		return ""
	}
	f.users[userID] = user.Name
	return user.Name
}

// retry re-runs fn after the server's Retry-After when rate limited
func (f *Fetcher) retry(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		var limited *slack.RateLimitedError
		if err == nil || !errors.As(err, &limited) || attempt >= f.maxRetries {
			return err
		}
		f.logger.Warn("rate limited", "retry_after", limited.RetryAfter)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(limited.RetryAfter):
		}
	}
}

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
