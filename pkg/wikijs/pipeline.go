package wikijs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AllResources is the resource id reported for a whole-cache invalidation.
const AllResources = "all"

// InvalidationBroadcaster forwards invalidated resource ids to other
// processes sharing the same upstream.
type InvalidationBroadcaster interface {
	Publish(ctx context.Context, resourceIDs []string) error
	// PublishAll asks the other processes to drop their whole cache.
	PublishAll(ctx context.Context) error
}

// Pipeline composes cache, breaker, limiter and retry policy behind a single
// Execute entry point. One Pipeline is shared by every endpoint wrapper of a
// client and is safe for concurrent use.
type Pipeline struct {
	cache   *ResultCache
	limiter *TokenBucketLimiter
	breaker *CircuitBreaker
	retry   RetryPolicy

	limiterTimeout time.Duration
	attemptTimeout time.Duration

	clock       Clock
	logger      Logger
	metrics     MetricsRecorder
	broadcaster InvalidationBroadcaster
}

type pipelineOptions struct {
	clock       Clock
	logger      Logger
	metrics     MetricsRecorder
	broadcaster InvalidationBroadcaster
	jitter      func() float64
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineOptions)

// WithClock sets the clock shared by every pipeline component.
func WithClock(clock Clock) PipelineOption {
	return func(o *pipelineOptions) {
		o.clock = clock
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger Logger) PipelineOption {
	return func(o *pipelineOptions) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics MetricsRecorder) PipelineOption {
	return func(o *pipelineOptions) {
		o.metrics = metrics
	}
}

// WithInvalidationBroadcaster publishes local invalidations to other processes.
func WithInvalidationBroadcaster(b InvalidationBroadcaster) PipelineOption {
	return func(o *pipelineOptions) {
		o.broadcaster = b
	}
}

// WithJitterSource replaces the random source used for backoff jitter.
func WithJitterSource(fn func() float64) PipelineOption {
	return func(o *pipelineOptions) {
		o.jitter = fn
	}
}

// NewPipeline validates cfg and builds a pipeline. A nil cfg uses
// DefaultPipelineConfig.
func NewPipeline(cfg *PipelineConfig, opts ...PipelineOption) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultPipelineConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := pipelineOptions{
		clock:   SystemClock(),
		logger:  NopLogger{},
		metrics: nopMetrics{},
	}

	for _, opt := range opts {
		opt(&o)
	}

	p := &Pipeline{
		retry:          retryPolicyFromConfig(cfg),
		limiterTimeout: cfg.LimiterTimeout,
		attemptTimeout: cfg.AttemptTimeout,
		clock:          o.clock,
		logger:         o.logger,
		metrics:        o.metrics,
		broadcaster:    o.broadcaster,
	}
	p.retry.Jitter = o.jitter

	var err error

	p.cache, err = NewResultCache(cfg.CacheMaxEntries, cfg.CacheDefaultTTL, WithCacheClock(o.clock))
	if err != nil {
		return nil, fmt.Errorf("creating result cache: %w", err)
	}

	p.limiter, err = NewTokenBucketLimiter(cfg.LimiterCapacity, cfg.LimiterRate, WithLimiterClock(o.clock))
	if err != nil {
		return nil, fmt.Errorf("creating rate limiter: %w", err)
	}

	p.breaker, err = NewCircuitBreaker(
		cfg.BreakerFailureThreshold,
		cfg.BreakerRecoveryTimeout,
		cfg.BreakerSuccessThreshold,
		WithStateChangeHook(p.circuitChanged),
	)
	if err != nil {
		return nil, fmt.Errorf("creating circuit breaker: %w", err)
	}

	return p, nil
}

// Cache returns the result cache for diagnostics and manual invalidation.
func (p *Pipeline) Cache() *ResultCache {
	return p.cache
}

// InvalidateAll drops every cached result and asks the other processes
// sharing the broadcaster to do the same.
func (p *Pipeline) InvalidateAll(ctx context.Context) error {
	removed := p.cache.Len()
	p.cache.InvalidateAll()
	p.metrics.ObserveInvalidation(AllResources, removed)

	if p.broadcaster == nil {
		return nil
	}

	if err := p.broadcaster.PublishAll(ctx); err != nil {
		return fmt.Errorf("broadcasting cache flush: %w", err)
	}

	return nil
}

// Limiter returns the limiter, e.g. to set per-key limits.
func (p *Pipeline) Limiter() *TokenBucketLimiter {
	return p.limiter
}

// Breaker returns the circuit breaker.
func (p *Pipeline) Breaker() *CircuitBreaker {
	return p.breaker
}

// RetryPolicy returns a copy of the retry policy in use.
func (p *Pipeline) RetryPolicy() RetryPolicy {
	return p.retry
}

// Execute runs op through the pipeline. Cache hits return without touching
// the breaker or limiter. Otherwise each attempt is admitted by the breaker
// and the limiter, and transient failures are retried per the retry policy.
// On success the breaker is told, cacheable results are stored and the
// operation's invalidations are applied before returning.
func (p *Pipeline) Execute(ctx context.Context, op Operation) (any, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	start := p.clock.Now()

	var epoch uint64

	if op.Cacheable {
		if value, ok := p.cache.Get(op.Fingerprint); ok {
			p.metrics.ObserveCacheLookup(op.TargetKey, true)
			p.metrics.ObserveRequest(op.TargetKey, OutcomeCacheHit, p.clock.Now().Sub(start))

			return value, nil
		}

		p.metrics.ObserveCacheLookup(op.TargetKey, false)
		epoch = p.cache.Epoch()
	}

	result, err := p.run(ctx, &op, start, epoch)
	p.metrics.ObserveRequest(op.TargetKey, OutcomeOf(err), p.clock.Now().Sub(start))

	return result, err
}

func (p *Pipeline) run(ctx context.Context, op *Operation, start time.Time, epoch uint64) (any, error) {
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}

		if p.breaker.StateOf(op.TargetKey) == StateOpen {
			return nil, &CircuitOpenError{TargetKey: op.TargetKey, Cause: lastErr}
		}

		admitted, err := p.limiter.Acquire(ctx, op.TargetKey, p.limiterTimeout)
		if err != nil {
			return nil, cancelled(err)
		}

		if !admitted {
			return nil, &RateLimitError{TargetKey: op.TargetKey, Timeout: p.limiterTimeout}
		}

		adm, err := p.breaker.Allow(op.TargetKey)
		if err != nil {
			return nil, &CircuitOpenError{TargetKey: op.TargetKey, Cause: lastErr}
		}

		result, err := p.attempt(ctx, op)
		p.metrics.ObserveAttempt(op.TargetKey, err)

		if err == nil {
			p.breaker.RecordSuccess(adm)
			p.complete(ctx, op, epoch, result)

			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			p.breaker.Release(adm)

			return nil, cancelled(ctxErr)
		}

		if !ClassOf(err).Transient() {
			// The upstream answered, so the circuit sees a healthy call.
			p.breaker.RecordSuccess(adm)

			return nil, err
		}

		lastErr = err

		if p.breaker.RecordFailure(adm) == StateOpen {
			return nil, &CircuitOpenError{TargetKey: op.TargetKey, Cause: err}
		}

		elapsed := p.clock.Now().Sub(start)

		retry, delay := p.retry.ShouldRetry(attempt, elapsed, err)
		if !retry {
			if p.retry.Retryable(err) {
				return nil, &RetriesExhaustedError{Attempts: attempt, Elapsed: elapsed, Last: err}
			}

			return nil, err
		}

		p.logger.Debug("Retrying operation", map[string]interface{}{
			"target":  op.TargetKey,
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		p.metrics.ObserveRetry(op.TargetKey, delay)

		if err := p.clock.Sleep(ctx, delay); err != nil {
			return nil, cancelled(err)
		}
	}
}

// attempt runs the transport call under the per-attempt timeout. Expiry of
// that timeout, as opposed to the caller's context, is a transient network
// failure.
func (p *Pipeline) attempt(ctx context.Context, op *Operation) (any, error) {
	attemptCtx := ctx

	if p.attemptTimeout > 0 {
		var cancel context.CancelFunc

		attemptCtx, cancel = context.WithTimeout(ctx, p.attemptTimeout)
		defer cancel()
	}

	result, err := op.Execute(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !ClassOf(err).Transient() {
		return nil, &APIError{
			Class:   ClassTransientNetwork,
			Message: fmt.Sprintf("attempt timed out after %s", p.attemptTimeout),
			Err:     err,
		}
	}

	return result, err
}

func (p *Pipeline) complete(ctx context.Context, op *Operation, epoch uint64, result any) {
	if op.Cacheable {
		p.cache.SetIfUnchanged(epoch, op.Fingerprint, result, op.TTL, op.tags(result)...)
	}

	if len(op.Invalidates) == 0 {
		return
	}

	for _, id := range op.Invalidates {
		removed := p.cache.Invalidate(id)
		p.metrics.ObserveInvalidation(id, removed)
	}

	if p.broadcaster == nil {
		return
	}

	if err := p.broadcaster.Publish(context.WithoutCancel(ctx), op.Invalidates); err != nil {
		p.logger.Warn("Failed to broadcast cache invalidation", map[string]interface{}{
			"resources": op.Invalidates,
			"error":     err.Error(),
		})
	}
}

func (p *Pipeline) circuitChanged(key string, from, to CircuitState) {
	fields := map[string]interface{}{
		"target": key,
		"from":   from.String(),
		"to":     to.String(),
	}

	if to == StateOpen {
		p.logger.Warn("Circuit breaker opened", fields)
	} else {
		p.logger.Info("Circuit breaker state changed", fields)
	}

	p.metrics.ObserveCircuitState(key, to)
}

// ExecuteAs runs op and asserts the result to T.
func ExecuteAs[T any](ctx context.Context, p *Pipeline, op Operation) (T, error) {
	var zero T

	value, err := p.Execute(ctx, op)
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T", ErrUnexpectedResult, value)
	}

	return typed, nil
}
