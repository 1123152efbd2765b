// Package format converts raw source records into canonical entities.
// Every conversion is a pure function of its input record.
package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is one raw source record as decoded from the source's JSON
type Record map[string]any

// Kind names the shape of a raw record
type Kind string

const (
	KindRepository  Kind = "repository"
	KindPullRequest Kind = "pull_request"
	KindIssue       Kind = "issue"
	KindContributor Kind = "contributor"
	KindChannel     Kind = "channel"
	KindMessage     Kind = "message"
)

// AllKinds in formatting order
var AllKinds = []Kind{KindRepository, KindContributor, KindPullRequest, KindIssue, KindChannel, KindMessage, KindComment}

// ErrMalformed marks a record missing a required identifier
var ErrMalformed = errors.New("malformed record")

func malformed(kind Kind, field string) error {
	return fmt.Errorf("%s: missing %s: %w", kind, field, ErrMalformed)
}

// isoLayout is the canonical timestamp layout: UTC, millisecond precision
const isoLayout = "2006-01-02T15:04:05.000Z"

// String returns the value at key coerced to a string. Numbers are rendered
// without exponent or fraction so numeric ids survive the JSON round trip.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Int returns the value at key as an int, zero when absent or unparseable
func (r Record) Int(key string) int {
	v, ok := r[key]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case json.Number:
		n, _ := t.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(strings.TrimPrefix(t, "#"))
		return n
	}
	return 0
}

// Bool returns the value at key as a bool
func (r Record) Bool(key string) bool {
	switch t := r[key].(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	return false
}

// Sub returns the nested record at key, or nil
func (r Record) Sub(key string) Record {
	switch t := r[key].(type) {
	case map[string]any:
		return Record(t)
	case Record:
		return t
	}
	return nil
}

// Has reports whether key is present with a non-nil value
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// first returns the first non-empty string among keys
func (r Record) first(keys ...string) string {
	for _, k := range keys {
		if s := r.String(k); s != "" {
			return s
		}
	}
	return ""
}

// normalizeTime renders RFC 3339 timestamps in the canonical layout. Values
// that do not parse are returned unchanged.
func normalizeTime(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return t.UTC().Format(isoLayout)
}

// SlackTimestampToISO converts a messaging-platform timestamp such as
// "1745704536.966429" to "2025-04-26T21:55:36.966Z". Fractional digits
// beyond milliseconds are truncated. Empty or invalid input yields "".
func SlackTimestampToISO(ts string) string {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return ""
	}
	secPart, fracPart, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return ""
	}
	var nsec int64
	if fracPart != "" {
		frac := (fracPart + "000000000")[:9]
		nsec, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return ""
		}
	}
	return time.Unix(sec, nsec).UTC().Format(isoLayout)
}
