package wikijs_test

import (
	"context"
	"testing"
	"time"

	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, capacity int, rate float64) (*wikijs.TokenBucketLimiter, *manualClock) {
	t.Helper()

	clock := newManualClock()
	limiter, err := wikijs.NewTokenBucketLimiter(capacity, rate, wikijs.WithLimiterClock(clock))
	require.NoError(t, err)

	return limiter, clock
}

func TestNewTokenBucketLimiter_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := wikijs.NewTokenBucketLimiter(0, 1)
	require.ErrorIs(t, err, wikijs.ErrInvalidConfig)

	_, err = wikijs.NewTokenBucketLimiter(5, 0)
	require.ErrorIs(t, err, wikijs.ErrInvalidConfig)

	_, err = wikijs.NewTokenBucketLimiter(5, -2)
	require.ErrorIs(t, err, wikijs.ErrInvalidConfig)
}

func TestTokenBucketLimiter_BurstThenTimeout(t *testing.T) {
	t.Parallel()

	limiter, clock := newLimiter(t, 5, 1)
	ctx := context.Background()

	for i := range 5 {
		ok, err := limiter.Acquire(ctx, "pages", time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "call %d", i+1)
	}

	ok, err := limiter.Acquire(ctx, "pages", 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, clock.Sleeps(), "no call should have waited")
}

func TestTokenBucketLimiter_WaitsExactRefillTime(t *testing.T) {
	t.Parallel()

	limiter, clock := newLimiter(t, 2, 4)
	ctx := context.Background()

	for range 2 {
		ok, err := limiter.Acquire(ctx, "pages", 0)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := limiter.Acquire(ctx, "pages", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 1)
	assert.InDelta(t, float64(250*time.Millisecond), float64(sleeps[0]), float64(time.Millisecond))
}

func TestTokenBucketLimiter_TimeoutDoesNotConsume(t *testing.T) {
	t.Parallel()

	limiter, clock := newLimiter(t, 1, 1)
	ctx := context.Background()

	ok, err := limiter.Acquire(ctx, "pages", 0)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(500 * time.Millisecond)

	ok, err = limiter.Acquire(ctx, "pages", 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.InDelta(t, 0.5, limiter.Tokens("pages"), 1e-6)

	clock.Advance(500 * time.Millisecond)

	ok, err = limiter.Acquire(ctx, "pages", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTokenBucketLimiter_RefillNeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	limiter, clock := newLimiter(t, 3, 10)

	clock.Advance(time.Hour)
	assert.InDelta(t, 3.0, limiter.Tokens("pages"), 1e-9)
}

func TestTokenBucketLimiter_KeysAreIsolated(t *testing.T) {
	t.Parallel()

	limiter, _ := newLimiter(t, 1, 1)
	ctx := context.Background()

	ok, _ := limiter.Acquire(ctx, "pages", 0)
	require.True(t, ok)

	ok, _ = limiter.Acquire(ctx, "pages", 0)
	assert.False(t, ok)

	ok, _ = limiter.Acquire(ctx, "site", 0)
	assert.True(t, ok, "a new key starts with a full bucket")
}

func TestTokenBucketLimiter_SetLimit(t *testing.T) {
	t.Parallel()

	limiter, _ := newLimiter(t, 1, 1)
	ctx := context.Background()

	require.NoError(t, limiter.SetLimit("search", 3, 1))
	require.ErrorIs(t, limiter.SetLimit("search", 0, 1), wikijs.ErrInvalidConfig)

	admitted := 0

	for range 5 {
		ok, err := limiter.Acquire(ctx, "search", 0)
		require.NoError(t, err)

		if ok {
			admitted++
		}
	}

	assert.Equal(t, 3, admitted)
}

func TestTokenBucketLimiter_CancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	limiter, err := wikijs.NewTokenBucketLimiter(1, 0.001)
	require.NoError(t, err)

	ok, err := limiter.Acquire(context.Background(), "pages", 0)
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	ok, err = limiter.Acquire(ctx, "pages", time.Hour)

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTokenBucketLimiter_AlreadyCancelled(t *testing.T) {
	t.Parallel()

	limiter, _ := newLimiter(t, 5, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := limiter.Acquire(ctx, "pages", time.Second)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
	assert.InDelta(t, 5.0, limiter.Tokens("pages"), 1e-9)
}

func TestTokenBucketLimiter_Conservation(t *testing.T) {
	t.Parallel()

	const (
		capacity = 5
		rate     = 2.0
		window   = 10 * time.Second
		step     = 50 * time.Millisecond
	)

	limiter, clock := newLimiter(t, capacity, rate)
	ctx := context.Background()

	admitted := 0

	for elapsed := time.Duration(0); elapsed <= window; elapsed += step {
		for range 3 {
			ok, err := limiter.Acquire(ctx, "pages", 0)
			require.NoError(t, err)

			if ok {
				admitted++
			}
		}

		clock.Advance(step)
	}

	bound := capacity + int(rate*window.Seconds())
	assert.LessOrEqual(t, admitted, bound)
	assert.GreaterOrEqual(t, admitted, bound-1)
}
