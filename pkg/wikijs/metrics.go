package wikijs

import (
	"errors"
	"time"
)

// Outcome labels how a pipeline call ended.
type Outcome string

// Pipeline outcomes.
const (
	OutcomeSuccess          Outcome = "success"
	OutcomeCacheHit         Outcome = "cache_hit"
	OutcomeCircuitOpen      Outcome = "circuit_open"
	OutcomeRateLimited      Outcome = "rate_limited"
	OutcomeRetriesExhausted Outcome = "retries_exhausted"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeError            Outcome = "error"
)

// MetricsRecorder receives pipeline telemetry.
type MetricsRecorder interface {
	ObserveRequest(targetKey string, outcome Outcome, duration time.Duration)
	ObserveAttempt(targetKey string, err error)
	ObserveRetry(targetKey string, delay time.Duration)
	ObserveCacheLookup(targetKey string, hit bool)
	ObserveInvalidation(resourceID string, removed int)
	ObserveCircuitState(targetKey string, state CircuitState)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRequest(string, Outcome, time.Duration) {}

func (nopMetrics) ObserveAttempt(string, error) {}

func (nopMetrics) ObserveRetry(string, time.Duration) {}

func (nopMetrics) ObserveCacheLookup(string, bool) {}

func (nopMetrics) ObserveInvalidation(string, int) {}

func (nopMetrics) ObserveCircuitState(string, CircuitState) {}

// OutcomeOf maps a pipeline result error to its outcome label.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrCancelled):
		return OutcomeCancelled
	case errors.Is(err, ErrCircuitOpen):
		return OutcomeCircuitOpen
	case errors.Is(err, ErrRateLimitTimeout):
		return OutcomeRateLimited
	case errors.Is(err, ErrRetriesExhausted):
		return OutcomeRetriesExhausted
	default:
		return OutcomeError
	}
}
