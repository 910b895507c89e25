package wikijs

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/fivetwenty-io/wikijs/internal/constants"
)

// RetryPolicy decides whether and when a failed attempt is retried. It holds
// no mutable state and is safe to share.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// MaxElapsed stops retrying once this much time has passed since the first attempt.
	MaxElapsed time.Duration
	// RetryableStatusCodes lists the server statuses treated as transient.
	RetryableStatusCodes []int
	// Jitter returns a value in [0, 1). Nil uses math/rand/v2.
	Jitter func() float64
}

// DefaultRetryPolicy returns the policy built from the package defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:           constants.DefaultRetryMax,
		BaseDelay:            constants.DefaultRetryBaseDelay,
		MaxDelay:             constants.DefaultRetryWaitMax,
		MaxElapsed:           constants.DefaultRetryMaxElapsed,
		RetryableStatusCodes: constants.DefaultRetryStatusCodes(),
	}
}

// ShouldRetry reports whether retry number attempt (1-indexed) should run
// after err, given the time elapsed since the first attempt, and how long to
// wait before it.
func (p RetryPolicy) ShouldRetry(attempt int, elapsed time.Duration, err error) (bool, time.Duration) {
	if attempt < 1 || attempt > p.MaxRetries || elapsed > p.MaxElapsed {
		return false, 0
	}

	if !p.Retryable(err) {
		return false, 0
	}

	delay := p.Backoff(attempt)

	apiErr := &APIError{}
	if errors.As(err, &apiErr) && apiErr.RetryAfter > delay {
		delay = apiErr.RetryAfter
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return true, delay
}

// Retryable reports whether err belongs to a class this policy retries.
// Server classes are retryable only for the configured status codes.
func (p RetryPolicy) Retryable(err error) bool {
	if err == nil {
		return false
	}

	apiErr := &APIError{}
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.Class {
	case ClassTransientNetwork:
		return true
	case ClassTransientServer, ClassRateLimited:
		return apiErr.StatusCode == 0 || slices.Contains(p.RetryableStatusCodes, apiErr.StatusCode)
	case ClassUnknown, ClassClient, ClassAuth, ClassNotFound:
		return false
	default:
		return false
	}
}

// Backoff returns min(MaxDelay, BaseDelay*2^(attempt-1)) scaled by a
// uniform factor in [0.5, 1.0].
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	raw := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.MaxDelay > 0 && raw > float64(p.MaxDelay) {
		raw = float64(p.MaxDelay)
	}

	jitter := rand.Float64
	if p.Jitter != nil {
		jitter = p.Jitter
	}

	factor := 0.5 + jitter()/2

	return time.Duration(raw * factor)
}

func retryPolicyFromConfig(cfg *PipelineConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:           cfg.RetryMaxAttempts,
		BaseDelay:            cfg.RetryBaseDelay,
		MaxDelay:             cfg.RetryMaxDelay,
		MaxElapsed:           cfg.RetryMaxElapsed,
		RetryableStatusCodes: slices.Clone(cfg.RetryStatusCodes),
	}
}
