package wikijs

import (
	"fmt"
	"slices"
	"time"

	"github.com/fivetwenty-io/wikijs/internal/constants"
)

// PipelineConfig configures the request pipeline. Every field has a default;
// see DefaultPipelineConfig.
type PipelineConfig struct {
	CacheMaxEntries      int           `json:"cache_max_entries"      yaml:"cache_max_entries"`
	CacheDefaultTTL      time.Duration `json:"cache_default_ttl"      yaml:"cache_default_ttl"`
	CacheCleanupInterval time.Duration `json:"cache_cleanup_interval" yaml:"cache_cleanup_interval"`

	LimiterCapacity int           `json:"limiter_capacity" yaml:"limiter_capacity"`
	LimiterRate     float64       `json:"limiter_rate"     yaml:"limiter_rate"`
	LimiterTimeout  time.Duration `json:"limiter_timeout"  yaml:"limiter_timeout"`

	RetryMaxAttempts int           `json:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelay   time.Duration `json:"retry_base_delay"   yaml:"retry_base_delay"`
	RetryMaxDelay    time.Duration `json:"retry_max_delay"    yaml:"retry_max_delay"`
	RetryMaxElapsed  time.Duration `json:"retry_max_elapsed"  yaml:"retry_max_elapsed"`
	RetryStatusCodes []int         `json:"retry_status_codes" yaml:"retry_status_codes"`

	BreakerFailureThreshold int           `json:"breaker_failure_threshold" yaml:"breaker_failure_threshold"`
	BreakerRecoveryTimeout  time.Duration `json:"breaker_recovery_timeout"  yaml:"breaker_recovery_timeout"`
	BreakerSuccessThreshold int           `json:"breaker_success_threshold" yaml:"breaker_success_threshold"`

	// AttemptTimeout bounds each transport call. Zero disables the bound.
	AttemptTimeout time.Duration `json:"attempt_timeout" yaml:"attempt_timeout"`
}

// DefaultPipelineConfig returns the documented defaults.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		CacheMaxEntries:         constants.DefaultCacheSize,
		CacheDefaultTTL:         constants.DefaultCacheTTL,
		CacheCleanupInterval:    constants.DefaultCacheCleanupInterval,
		LimiterCapacity:         constants.DefaultRateLimitCapacity,
		LimiterRate:             constants.DefaultRateLimitRate,
		LimiterTimeout:          constants.DefaultRateLimitTimeout,
		RetryMaxAttempts:        constants.DefaultRetryMax,
		RetryBaseDelay:          constants.DefaultRetryBaseDelay,
		RetryMaxDelay:           constants.DefaultRetryWaitMax,
		RetryMaxElapsed:         constants.DefaultRetryMaxElapsed,
		RetryStatusCodes:        constants.DefaultRetryStatusCodes(),
		BreakerFailureThreshold: constants.CircuitBreakerThreshold,
		BreakerRecoveryTimeout:  constants.CircuitBreakerTimeout,
		BreakerSuccessThreshold: constants.CircuitBreakerSuccessThreshold,
		AttemptTimeout:          constants.DefaultAttemptTimeout,
	}
}

// Validate rejects values that cannot produce a working pipeline.
func (c *PipelineConfig) Validate() error {
	checks := []struct {
		ok   bool
		name string
		val  any
	}{
		{c.CacheMaxEntries > 0, "cache max entries", c.CacheMaxEntries},
		{c.CacheDefaultTTL > 0, "cache default TTL", c.CacheDefaultTTL},
		{c.CacheCleanupInterval >= 0, "cache cleanup interval", c.CacheCleanupInterval},
		{c.LimiterCapacity > 0, "limiter capacity", c.LimiterCapacity},
		{c.LimiterRate > 0, "limiter rate", c.LimiterRate},
		{c.LimiterTimeout >= 0, "limiter timeout", c.LimiterTimeout},
		{c.RetryMaxAttempts >= 0, "retry max attempts", c.RetryMaxAttempts},
		{c.RetryBaseDelay > 0, "retry base delay", c.RetryBaseDelay},
		{c.RetryMaxDelay >= c.RetryBaseDelay, "retry max delay", c.RetryMaxDelay},
		{c.RetryMaxElapsed > 0, "retry max elapsed", c.RetryMaxElapsed},
		{c.BreakerFailureThreshold > 0, "breaker failure threshold", c.BreakerFailureThreshold},
		{c.BreakerRecoveryTimeout > 0, "breaker recovery timeout", c.BreakerRecoveryTimeout},
		{c.BreakerSuccessThreshold > 0, "breaker success threshold", c.BreakerSuccessThreshold},
		{c.AttemptTimeout >= 0, "attempt timeout", c.AttemptTimeout},
	}

	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, check.name, check.val)
		}
	}

	if slices.ContainsFunc(c.RetryStatusCodes, func(code int) bool { return code < 100 || code > 599 }) {
		return fmt.Errorf("%w: retry status codes: %v", ErrInvalidConfig, c.RetryStatusCodes)
	}

	return nil
}
