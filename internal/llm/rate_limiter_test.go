package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limits Limits) *RateLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rl := NewRateLimiter(client, "test", limits)
	fixed := time.Date(2025, 4, 26, 21, 55, 30, 0, time.UTC)
	rl.now = func() time.Time { return fixed }
	return rl
}

func TestRateLimiter_UnderLimits(t *testing.T) {
	rl := newTestLimiter(t, DefaultLimits())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, rl.CheckAndIncrement(ctx, 100))
	}

	rpm, tpm, rpd, err := rl.CurrentUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), rpm)
	assert.Equal(t, int64(1000), tpm)
	assert.Equal(t, int64(10), rpd)
}

func TestRateLimiter_RPMThreshold(t *testing.T) {
	rl := newTestLimiter(t, Limits{RPM: 10, TPM: 1_000_000, RPD: 1000})
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, rl.CheckAndIncrement(ctx, 1))
	}

	err := rl.CheckAndIncrement(ctx, 1)
	var throttle *ThrottleError
	require.True(t, errors.As(err, &throttle))
	assert.Equal(t, "RPM", throttle.Limit)
	assert.Equal(t, int64(9), throttle.Current)
	assert.False(t, throttle.Daily)
	assert.Equal(t, 30*time.Second, throttle.Wait)
}

func TestRateLimiter_TPMThreshold(t *testing.T) {
	rl := newTestLimiter(t, Limits{RPM: 1000, TPM: 1000, RPD: 1000})

	err := rl.CheckAndIncrement(context.Background(), 950)
	var throttle *ThrottleError
	require.True(t, errors.As(err, &throttle))
	assert.Equal(t, "TPM", throttle.Limit)
}

func TestRateLimiter_DailyQuota(t *testing.T) {
	rl := newTestLimiter(t, Limits{RPM: 1000, TPM: 1_000_000, RPD: 3})
	ctx := context.Background()

	require.NoError(t, rl.CheckAndIncrement(ctx, 1))
	require.NoError(t, rl.CheckAndIncrement(ctx, 1))

	err := rl.Wait(ctx, 1)
	var throttle *ThrottleError
	require.True(t, errors.As(err, &throttle))
	assert.True(t, throttle.Daily)
	assert.Contains(t, err.Error(), "daily quota exceeded")
}

func TestRateLimiter_WaitRespectsContext(t *testing.T) {
	rl := newTestLimiter(t, Limits{RPM: 1, TPM: 1_000_000, RPD: 1000})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
