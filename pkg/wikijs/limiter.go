package wikijs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucketLimit struct {
	capacity int
	rate     float64
}

// TokenBucketLimiter admits requests per target key from a token bucket that
// refills continuously up to its capacity. A key seen for the first time
// starts with a full bucket.
type TokenBucketLimiter struct {
	defaults bucketLimit
	clock    Clock

	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	overrides map[string]bucketLimit
}

// LimiterOption configures a TokenBucketLimiter.
type LimiterOption func(*TokenBucketLimiter)

// WithLimiterClock sets the clock used for refill and waiting.
func WithLimiterClock(clock Clock) LimiterOption {
	return func(l *TokenBucketLimiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// NewTokenBucketLimiter creates a limiter whose buckets hold capacity tokens
// and refill at ratePerSecond.
func NewTokenBucketLimiter(capacity int, ratePerSecond float64, opts ...LimiterOption) (*TokenBucketLimiter, error) {
	if err := validateLimit(capacity, ratePerSecond); err != nil {
		return nil, err
	}

	l := &TokenBucketLimiter{
		defaults:  bucketLimit{capacity: capacity, rate: ratePerSecond},
		clock:     SystemClock(),
		buckets:   make(map[string]*rate.Limiter),
		overrides: make(map[string]bucketLimit),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// SetLimit overrides capacity and rate for one key. An existing bucket keeps
// its tokens, clamped to the new capacity.
func (l *TokenBucketLimiter) SetLimit(key string, capacity int, ratePerSecond float64) error {
	if err := validateLimit(capacity, ratePerSecond); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.overrides[key] = bucketLimit{capacity: capacity, rate: ratePerSecond}

	if bucket, ok := l.buckets[key]; ok {
		now := l.clock.Now()
		bucket.SetLimitAt(now, rate.Limit(ratePerSecond))
		bucket.SetBurstAt(now, capacity)
	}

	return nil
}

// Acquire takes one token for key. If none is available it waits for the
// exact refill time, provided that wait fits within timeout; otherwise it
// returns false at once without consuming anything. The only error returned
// is the context's, when ctx ends during the wait.
func (l *TokenBucketLimiter) Acquire(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	bucket := l.bucket(key)
	now := l.clock.Now()

	reservation := bucket.ReserveN(now, 1)
	if !reservation.OK() {
		return false, nil
	}

	wait := reservation.DelayFrom(now)
	if wait <= 0 {
		return true, nil
	}

	if wait > timeout {
		reservation.CancelAt(now)

		return false, nil
	}

	if err := l.clock.Sleep(ctx, wait); err != nil {
		reservation.CancelAt(l.clock.Now())

		return false, err
	}

	return true, nil
}

// Tokens reports the tokens currently available for key.
func (l *TokenBucketLimiter) Tokens(key string) float64 {
	return l.bucket(key).TokensAt(l.clock.Now())
}

func (l *TokenBucketLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bucket, ok := l.buckets[key]; ok {
		return bucket
	}

	limit, ok := l.overrides[key]
	if !ok {
		limit = l.defaults
	}

	bucket := rate.NewLimiter(rate.Limit(limit.rate), limit.capacity)
	l.buckets[key] = bucket

	return bucket
}

func validateLimit(capacity int, ratePerSecond float64) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: limiter capacity must be positive, got %d", ErrInvalidConfig, capacity)
	}

	if ratePerSecond <= 0 {
		return fmt.Errorf("%w: limiter rate must be positive, got %v", ErrInvalidConfig, ratePerSecond)
	}

	return nil
}
