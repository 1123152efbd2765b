package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter keeps provider calls under per-minute and per-day quotas using
// counters in Redis, so several processes sharing one API key share one
// budget.
type RateLimiter struct {
	redis  redis.UniversalClient
	prefix string
	limits Limits
	now    func() time.Time
	logger *slog.Logger
}

// Limits are provider quotas
type Limits struct {
	RPM int64 // requests per minute
	TPM int64 // tokens per minute
	RPD int64 // requests per day
}

// DefaultLimits match the Gemini and OpenAI tier-1 quotas for the default
// models.
func DefaultLimits() Limits {
	return Limits{RPM: 1000, TPM: 1_000_000, RPD: 10_000}
}

// ThrottleError reports that a quota threshold was reached
type ThrottleError struct {
	Limit   string
	Current int64
	Max     int64
	Wait    time.Duration
	Daily   bool
}

func (e *ThrottleError) Error() string {
	if e.Daily {
		return fmt.Sprintf("daily quota exceeded: %d/%d requests (resets in %s)", e.Current, e.Max, e.Wait)
	}
	return fmt.Sprintf("approaching %s limit (%d/%d), wait %s", e.Limit, e.Current, e.Max, e.Wait)
}

// NewRateLimiter creates a limiter over an existing client. prefix separates
// providers, e.g. "openai" or "gemini".
func NewRateLimiter(client redis.UniversalClient, prefix string, limits Limits) *RateLimiter {
	return &RateLimiter{
		redis:  client,
		prefix: prefix,
		limits: limits,
		now:    time.Now,
		logger: slog.Default().With("component", "rate_limiter", "prefix", prefix),
	}
}

// NewRateLimiterFromURL connects to redisURL (redis://host:port/db) and pings it
func NewRateLimiterFromURL(ctx context.Context, redisURL, prefix string) (*RateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return NewRateLimiter(client, prefix, DefaultLimits()), nil
}

// 90% thresholds per minute, hard limit per day
var quotaScript = redis.NewScript(`
	local rpm_key = KEYS[1]
	local tpm_key = KEYS[2]
	local rpd_key = KEYS[3]
	local rpm_limit = tonumber(ARGV[1])
	local tpm_limit = tonumber(ARGV[2])
	local rpd_limit = tonumber(ARGV[3])
	local tokens = tonumber(ARGV[4])

	local rpm = redis.call('INCR', rpm_key)
	local tpm = redis.call('INCRBY', tpm_key, tokens)
	local rpd = redis.call('INCR', rpd_key)

	if rpm == 1 then redis.call('EXPIRE', rpm_key, 70) end
	if tpm == tokens then redis.call('EXPIRE', tpm_key, 70) end
	if rpd == 1 then redis.call('EXPIRE', rpd_key, 86400) end

	if rpm >= rpm_limit * 0.9 then
		return {-1, 'RPM', rpm, rpm_limit}
	end
	if tpm >= tpm_limit * 0.9 then
		return {-2, 'TPM', tpm, tpm_limit}
	end
	if rpd >= rpd_limit then
		return {-3, 'RPD', rpd, rpd_limit}
	end
	return {0, 'OK', rpm, tpm, rpd}
`)

func (r *RateLimiter) keys(now time.Time) []string {
	minute := now.Format("2006-01-02T15:04")
	return []string{
		fmt.Sprintf("%s:rpm:%s", r.prefix, minute),
		fmt.Sprintf("%s:tpm:%s", r.prefix, minute),
		fmt.Sprintf("%s:rpd:%s", r.prefix, now.Format("2006-01-02")),
	}
}

// CheckAndIncrement counts one request of estimatedTokens and returns a
// *ThrottleError once a threshold is reached.
func (r *RateLimiter) CheckAndIncrement(ctx context.Context, estimatedTokens int64) error {
	now := r.now()

	result, err := quotaScript.Run(ctx, r.redis, r.keys(now),
		r.limits.RPM, r.limits.TPM, r.limits.RPD, estimatedTokens).Result()
	if err != nil {
		return fmt.Errorf("rate limiter Redis operation failed: %w", err)
	}

	values, ok := result.([]any)
	if !ok || len(values) < 4 {
		return fmt.Errorf("invalid rate limiter response format")
	}
	code, _ := values[0].(int64)
	if code == 0 {
		return nil
	}

	limit, _ := values[1].(string)
	current, _ := values[2].(int64)
	max, _ := values[3].(int64)

	if code == -3 {
		tomorrow := now.Add(24 * time.Hour)
		midnight := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
		return &ThrottleError{Limit: limit, Current: current, Max: max, Wait: midnight.Sub(now), Daily: true}
	}

	wait := time.Duration(60-now.Second()) * time.Second
	if wait <= 0 {
		wait = time.Second
	}
	return &ThrottleError{Limit: limit, Current: current, Max: max, Wait: wait}
}

// Wait blocks until the request fits under the per-minute thresholds. Daily
// quota errors are returned immediately.
func (r *RateLimiter) Wait(ctx context.Context, estimatedTokens int64) error {
	for {
		err := r.CheckAndIncrement(ctx, estimatedTokens)
		if err == nil {
			return nil
		}
		throttle, ok := err.(*ThrottleError)
		if !ok || throttle.Daily {
			return err
		}

		r.logger.Warn("rate limit approaching, throttling", "limit", throttle.Limit, "wait", throttle.Wait)
		select {
		case <-time.After(throttle.Wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// CurrentUsage returns (rpm, tpm, rpd) for the current windows
func (r *RateLimiter) CurrentUsage(ctx context.Context) (int64, int64, int64, error) {
	keys := r.keys(r.now())

	pipe := r.redis.Pipeline()
	rpmCmd := pipe.Get(ctx, keys[0])
	tpmCmd := pipe.Get(ctx, keys[1])
	rpdCmd := pipe.Get(ctx, keys[2])

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, 0, fmt.Errorf("failed to get usage stats: %w", err)
	}

	rpm, _ := rpmCmd.Int64()
	tpm, _ := tpmCmd.Int64()
	rpd, _ := rpdCmd.Int64()
	return rpm, tpm, rpd, nil
}

// Close closes the Redis connection
func (r *RateLimiter) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}
