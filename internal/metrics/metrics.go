// Package metrics publishes request pipeline telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wikijs"

// Recorder implements wikijs.MetricsRecorder on top of Prometheus collectors.
type Recorder struct {
	reg prometheus.Registerer

	requests        *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	attempts        *prometheus.CounterVec
	retries         *prometheus.CounterVec
	retryDelay      *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	invalidations   *prometheus.CounterVec
	invalidated     *prometheus.CounterVec
	circuitState    *prometheus.GaugeVec
	circuitOpenings *prometheus.CounterVec

	mu         sync.Mutex
	registered []prometheus.Collector
}

var _ wikijs.MetricsRecorder = (*Recorder)(nil)

// NewRecorder registers the pipeline collectors on reg. A nil reg uses a
// fresh registry.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		reg: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Operations executed through the request pipeline by outcome.",
		}, []string{"target", "outcome"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "request_duration_seconds",
			Help:      "End-to-end pipeline latency including retries and waits.",
			Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
		}, []string{"target", "outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "attempts_total",
			Help:      "Individual operation attempts by error class.",
		}, []string{"target", "result"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "retries_total",
			Help:      "Retries scheduled after transient failures.",
		}, []string{"target"}),
		retryDelay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "retry_delay_seconds",
			Help:      "Backoff delay chosen before each retry.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 30},
		}, []string{"target"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by result.",
		}, []string{"target", "result"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Resource invalidations by resource kind.",
		}, []string{"kind"}),
		invalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidated_entries_total",
			Help:      "Cache entries removed by invalidation.",
		}, []string{"kind"}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuit",
			Name:      "state",
			Help:      "Circuit breaker state per target (0 closed, 1 open, 2 half-open).",
		}, []string{"target"}),
		circuitOpenings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "circuit",
			Name:      "opened_total",
			Help:      "Transitions of a circuit into the open state.",
		}, []string{"target"}),
	}

	collectors := []prometheus.Collector{
		r.requests, r.requestLatency, r.attempts, r.retries, r.retryDelay,
		r.cacheLookups, r.invalidations, r.invalidated, r.circuitState, r.circuitOpenings,
	}

	if err := r.register(collectors); err != nil {
		return nil, fmt.Errorf("metrics: registering collector: %w", err)
	}

	return r, nil
}

// register adds collectors to the registerer as a unit. When one fails the
// ones already added are removed again.
func (r *Recorder) register(collectors []prometheus.Collector) error {
	for i, c := range collectors {
		if err := r.reg.Register(c); err != nil {
			for _, done := range collectors[:i] {
				r.reg.Unregister(done)
			}

			return err
		}
	}

	r.mu.Lock()
	r.registered = append(r.registered, collectors...)
	r.mu.Unlock()

	return nil
}

// Unregister removes every collector the recorder registered, so that a
// later client can register on the same registerer.
func (r *Recorder) Unregister() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.registered {
		r.reg.Unregister(c)
	}

	r.registered = nil
}

// TrackCache exposes the cache's size as gauges and its running totals as
// counters. A stats reset shows up as a counter reset. Call it once per cache.
func (r *Recorder) TrackCache(cache *wikijs.ResultCache) error {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}
	}
	gauge := func(name, help string, value func(wikijs.CacheStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts(opts(name, help)), func() float64 {
			return value(cache.Stats())
		})
	}
	counter := func(name, help string, value func(wikijs.CacheStats) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts(opts(name, help)), func() float64 {
			return value(cache.Stats())
		})
	}

	collectors := []prometheus.Collector{
		gauge("entries", "Entries currently held.", func(s wikijs.CacheStats) float64 { return float64(s.Size) }),
		gauge("capacity", "Maximum entries before LRU eviction.", func(s wikijs.CacheStats) float64 { return float64(s.MaxEntries) }),
		counter("hits_total", "Cache hits.", func(s wikijs.CacheStats) float64 { return float64(s.Hits) }),
		counter("misses_total", "Cache misses.", func(s wikijs.CacheStats) float64 { return float64(s.Misses) }),
		counter("evictions_total", "LRU evictions.", func(s wikijs.CacheStats) float64 { return float64(s.Evictions) }),
		counter("expirations_total", "Expired entries removed.", func(s wikijs.CacheStats) float64 { return float64(s.Expirations) }),
	}

	if err := r.register(collectors); err != nil {
		return fmt.Errorf("metrics: registering cache collector: %w", err)
	}

	return nil
}

func (r *Recorder) ObserveRequest(targetKey string, outcome wikijs.Outcome, duration time.Duration) {
	target := normalizeLabel(targetKey)
	r.requests.WithLabelValues(target, string(outcome)).Inc()
	r.requestLatency.WithLabelValues(target, string(outcome)).Observe(duration.Seconds())
}

func (r *Recorder) ObserveAttempt(targetKey string, err error) {
	result := "success"
	if err != nil {
		result = wikijs.ClassOf(err).String()
		if errors.Is(err, wikijs.ErrCancelled) {
			result = string(wikijs.OutcomeCancelled)
		}
	}

	r.attempts.WithLabelValues(normalizeLabel(targetKey), result).Inc()
}

func (r *Recorder) ObserveRetry(targetKey string, delay time.Duration) {
	target := normalizeLabel(targetKey)
	r.retries.WithLabelValues(target).Inc()
	r.retryDelay.WithLabelValues(target).Observe(delay.Seconds())
}

func (r *Recorder) ObserveCacheLookup(targetKey string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	r.cacheLookups.WithLabelValues(normalizeLabel(targetKey), result).Inc()
}

// ObserveInvalidation labels by resource kind ("page" for "page/42") to keep
// cardinality bounded.
func (r *Recorder) ObserveInvalidation(resourceID string, removed int) {
	kind, _, _ := strings.Cut(resourceID, "/")
	kind = normalizeLabel(kind)

	r.invalidations.WithLabelValues(kind).Inc()
	r.invalidated.WithLabelValues(kind).Add(float64(removed))
}

func (r *Recorder) ObserveCircuitState(targetKey string, state wikijs.CircuitState) {
	target := normalizeLabel(targetKey)
	r.circuitState.WithLabelValues(target).Set(float64(state))

	if state == wikijs.StateOpen {
		r.circuitOpenings.WithLabelValues(target).Inc()
	}
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}

	return trimmed
}
