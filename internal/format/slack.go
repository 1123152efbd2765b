package format

import (
	"strings"

	"github.com/google/uuid"

	"github.com/rohankatakam/teamgraph/internal/models"
)

// ChannelPrefix is prepended to messaging-platform channel ids
const ChannelPrefix = "channel-"

// JoinMessageSuffix identifies automatic join notifications
const JoinMessageSuffix = "has joined the channel"

// messageNamespace scopes message ids derived from (channel, ts)
var messageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("teamgraph/slack-message"))

// ChannelID returns the canonical id for a source channel id
func ChannelID(sourceID string) string {
	return prefixed(ChannelPrefix, sourceID)
}

// MessageID derives a stable message id from the source channel and the
// message timestamp, so repeated fetches of one message agree.
func MessageID(sourceChannelID, ts string) string {
	return uuid.NewSHA1(messageNamespace, []byte(sourceChannelID+"/"+ts)).String()
}

// Channel formats a channel record
func Channel(r Record) (models.Channel, error) {
	id := r.String("id")
	if id == "" {
		return models.Channel{}, malformed(KindChannel, "id")
	}
	return models.Channel{
		ID:              ChannelID(id),
		SourceChannelID: id,
		Name:            r.String("name"),
		IsPrivate:       r.Bool("is_private"),
	}, nil
}

// AuthorHandle prefers the resolved user name over the raw user id
func AuthorHandle(r Record) string {
	if info := r.Sub("user_info"); info != nil {
		if name := info.String("name"); name != "" {
			return name
		}
	}
	return r.first("user", "user_id", "username", "bot_id")
}

// Message formats a message record posted in sourceChannelID. When
// sourceChannelID is empty the record's own "channel" field is used.
func Message(r Record, sourceChannelID string) (models.Message, error) {
	ts := r.String("ts")
	if ts == "" {
		return models.Message{}, malformed(KindMessage, "ts")
	}
	if sourceChannelID == "" {
		sourceChannelID = r.String("channel")
	}
	if sourceChannelID == "" {
		return models.Message{}, malformed(KindMessage, "channel")
	}
	createdAt := SlackTimestampToISO(ts)
	if createdAt == "" {
		return models.Message{}, malformed(KindMessage, "ts")
	}
	return models.Message{
		ID:                    MessageID(sourceChannelID, ts),
		SourceAuthorHandle:    AuthorHandle(r),
		ChannelID:             ChannelID(sourceChannelID),
		Text:                  r.String("text"),
		ThreadParentTimestamp: SlackTimestampToISO(r.String("thread_ts")),
		CreatedAt:             createdAt,
	}, nil
}

// IsJoinMessage reports whether text is an automatic channel-join notice
func IsJoinMessage(text string) bool {
	return strings.HasSuffix(strings.TrimSpace(text), JoinMessageSuffix)
}
