package wikijs

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// ErrorClass tags a transport failure with the category the pipeline acts on.
// Classification happens once, at the transport boundary.
type ErrorClass int

// Error classes.
const (
	ClassUnknown ErrorClass = iota
	ClassTransientNetwork
	ClassTransientServer
	ClassRateLimited
	ClassClient
	ClassAuth
	ClassNotFound
)

// String returns the class name used in logs and metrics.
func (c ErrorClass) String() string {
	switch c {
	case ClassTransientNetwork:
		return "transient_network"
	case ClassTransientServer:
		return "transient_server"
	case ClassRateLimited:
		return "rate_limited"
	case ClassClient:
		return "client"
	case ClassAuth:
		return "auth"
	case ClassNotFound:
		return "not_found"
	case ClassUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// Transient reports whether failures of this class indicate upstream trouble
// rather than a problem with the request itself.
func (c ErrorClass) Transient() bool {
	return c == ClassTransientNetwork || c == ClassTransientServer || c == ClassRateLimited
}

// APIError is a classified failure returned by the transport layer.
type APIError struct {
	Class      ErrorClass    `json:"class"                 yaml:"class"`
	StatusCode int           `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Code       string        `json:"code,omitempty"        yaml:"code,omitempty"`
	Message    string        `json:"message"               yaml:"message"`
	RetryAfter time.Duration `json:"retry_after,omitempty" yaml:"retry_after,omitempty"`
	Err        error         `json:"-"                     yaml:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	switch {
	case e.StatusCode > 0 && e.Code != "":
		return fmt.Sprintf("%s: %s (status: %d, code: %s)", e.Class, msg, e.StatusCode, e.Code)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: %s (status: %d)", e.Class, msg, e.StatusCode)
	case e.Code != "":
		return fmt.Sprintf("%s: %s (code: %s)", e.Class, msg, e.Code)
	default:
		return fmt.Sprintf("%s: %s", e.Class, msg)
	}
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Pipeline outcomes and construction errors.
var (
	ErrRateLimitTimeout    = errors.New("rate limit wait exceeded timeout")
	ErrCircuitOpen         = errors.New("circuit breaker is open")
	ErrRetriesExhausted    = errors.New("retries exhausted")
	ErrCancelled           = errors.New("operation cancelled")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrInvalidOperation    = errors.New("invalid operation")
	ErrUnexpectedResult    = errors.New("unexpected result type")
	ErrUnknownCircuitState = errors.New("unknown circuit state")
)

// Client construction and argument errors.
var (
	ErrConfigRequired  = errors.New("config is required")
	ErrBaseURLRequired = errors.New("base URL is required")
	ErrInvalidPageID   = errors.New("page ID must be a positive integer")
	ErrPathRequired    = errors.New("page path is required")
	ErrQueryRequired   = errors.New("search query is required")
	ErrTitleRequired   = errors.New("page title is required")
	ErrInvalidListOpts = errors.New("invalid page list options")
	ErrTagsRequired    = errors.New("at least one tag is required")
	ErrBatchFailed     = errors.New("batch operation failed")
	ErrIteratorDone    = errors.New("no more pages")
)

// BatchError reports the items of a batch call that failed. The results
// returned with it still hold every item that succeeded.
type BatchError struct {
	Action string
	Total  int
	Failed int
	// Err combines the item errors.
	Err error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: %d of %d failed: %v", e.Action, e.Failed, e.Total, e.Err)
}

// Unwrap exposes ErrBatchFailed and every item error.
func (e *BatchError) Unwrap() []error {
	return append([]error{ErrBatchFailed}, multierr.Errors(e.Err)...)
}

// RetriesExhaustedError is returned when the retry policy gives up on a
// transient failure. Last holds the final observed cause.
type RetriesExhaustedError struct {
	Attempts int
	Elapsed  time.Duration
	Last     error
}

// Error implements the error interface.
func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts in %s: %v", ErrRetriesExhausted, e.Attempts, e.Elapsed, e.Last)
}

// Unwrap exposes both ErrRetriesExhausted and the last cause.
func (e *RetriesExhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Last}
}

// CircuitOpenError is returned when a call is short-circuited. Cause is the
// failure that tripped the breaker during this call, if any.
type CircuitOpenError struct {
	TargetKey string
	Cause     error
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s for %q: %v", ErrCircuitOpen, e.TargetKey, e.Cause)
	}

	return fmt.Sprintf("%s for %q", ErrCircuitOpen, e.TargetKey)
}

// Unwrap exposes ErrCircuitOpen and the cause.
func (e *CircuitOpenError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrCircuitOpen}
	}

	return []error{ErrCircuitOpen, e.Cause}
}

// RateLimitError is returned when the local limiter could not admit a call
// within its timeout. No request was sent.
type RateLimitError struct {
	TargetKey string
	Timeout   time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s for %q (timeout: %s)", ErrRateLimitTimeout, e.TargetKey, e.Timeout)
}

// Unwrap returns ErrRateLimitTimeout.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimitTimeout
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// ClassOf returns the class of the first APIError in err's chain.
func ClassOf(err error) ErrorClass {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}

	return ClassUnknown
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return ClassOf(err) == ClassNotFound
}

// IsUnauthorized checks if the error is an authentication or authorization error.
func IsUnauthorized(err error) bool {
	return ClassOf(err) == ClassAuth
}

// IsTransient checks if the error carries a transient class.
func IsTransient(err error) bool {
	return ClassOf(err).Transient()
}

// IsCircuitOpen checks if the call was short-circuited by the breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// IsRateLimited checks if the call was rejected by the local limiter.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimitTimeout)
}

// IsCancelled checks if the call was aborted by its context.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
