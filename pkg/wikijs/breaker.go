package wikijs

import (
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/wikijs/internal/constants"
	"github.com/sony/gobreaker/v2"
)

// CircuitState is the state of one circuit.
type CircuitState int

// Circuit states.
const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

// String returns the state name.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return constants.StatusClosed
	case StateOpen:
		return constants.StatusOpen
	case StateHalfOpen:
		return constants.StatusHalfOpen
	default:
		return fmt.Sprintf("CircuitState(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s CircuitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *CircuitState) UnmarshalText(text []byte) error {
	switch string(text) {
	case constants.StatusClosed:
		*s = StateClosed
	case constants.StatusOpen:
		*s = StateOpen
	case constants.StatusHalfOpen:
		*s = StateHalfOpen
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCircuitState, text)
	}

	return nil
}

// CircuitSnapshot describes a circuit for diagnostics.
type CircuitSnapshot struct {
	TargetKey           string       `json:"target_key"           yaml:"target_key"`
	State               CircuitState `json:"state"                yaml:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures" yaml:"consecutive_failures"`
	TrialSuccesses      int          `json:"trial_successes"      yaml:"trial_successes"`
	OpenedAt            time.Time    `json:"opened_at,omitzero"   yaml:"opened_at,omitempty"`
}

// Admission is handed out by Allow and must be returned to exactly one of
// RecordSuccess, RecordFailure or Release.
type Admission struct {
	key   string
	trial bool
	done  func(success bool)
}

// TargetKey returns the key the admission was issued for.
func (a Admission) TargetKey() string {
	return a.key
}

type circuit struct {
	cb *gobreaker.TwoStepCircuitBreaker[any]

	mu       sync.Mutex
	openedAt time.Time
}

// StateChangeFunc observes circuit transitions. It runs while the circuit is
// locked and must not call back into the breaker.
type StateChangeFunc func(targetKey string, from, to CircuitState)

// CircuitBreaker tracks upstream health per target key with one gobreaker
// two-step breaker per key. Results reported for an admission issued before
// the latest transition are ignored.
type CircuitBreaker struct {
	failureThreshold uint32
	successThreshold uint32
	recoveryTimeout  time.Duration
	onStateChange    StateChangeFunc

	mu       sync.RWMutex
	circuits map[string]*circuit
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithStateChangeHook registers a transition observer.
func WithStateChangeHook(fn StateChangeFunc) BreakerOption {
	return func(b *CircuitBreaker) {
		b.onStateChange = fn
	}
}

// NewCircuitBreaker creates a breaker that opens after failureThreshold
// consecutive failures, allows trials after recoveryTimeout and closes again
// after successThreshold trial successes. At most successThreshold trials are
// in flight while half-open.
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration, successThreshold int, opts ...BreakerOption) (*CircuitBreaker, error) {
	if failureThreshold <= 0 {
		return nil, fmt.Errorf("%w: breaker failure threshold must be positive, got %d", ErrInvalidConfig, failureThreshold)
	}

	if recoveryTimeout <= 0 {
		return nil, fmt.Errorf("%w: breaker recovery timeout must be positive, got %s", ErrInvalidConfig, recoveryTimeout)
	}

	if successThreshold <= 0 {
		return nil, fmt.Errorf("%w: breaker success threshold must be positive, got %d", ErrInvalidConfig, successThreshold)
	}

	b := &CircuitBreaker{
		failureThreshold: uint32(failureThreshold), //nolint:gosec // validated positive above
		successThreshold: uint32(successThreshold), //nolint:gosec // validated positive above
		recoveryTimeout:  recoveryTimeout,
		circuits:         make(map[string]*circuit),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// Allow asks whether a call to key may proceed. An open circuit whose
// recovery timeout has elapsed moves to half-open and admits the caller as a
// trial. Rejections are *CircuitOpenError.
func (b *CircuitBreaker) Allow(key string) (Admission, error) {
	c := b.circuit(key)

	done, err := c.cb.Allow()
	if err != nil {
		return Admission{}, &CircuitOpenError{TargetKey: key}
	}

	// Any transition after admission bumps the generation and turns done
	// into a no-op, so half-open here means this call is a trial.
	return Admission{
		key:   key,
		trial: c.cb.State() == gobreaker.StateHalfOpen,
		done:  done,
	}, nil
}

// RecordSuccess reports a call that reached the upstream and returns the
// resulting state.
func (b *CircuitBreaker) RecordSuccess(adm Admission) CircuitState {
	return b.finish(adm, true)
}

// RecordFailure reports a failed call that counts against upstream health
// and returns the resulting state.
func (b *CircuitBreaker) RecordFailure(adm Admission) CircuitState {
	return b.finish(adm, false)
}

// Release ends an admission whose call produced no health signal, such as a
// cancelled request. Outside half-open the counts are left alone. A released
// trial counts as failed, so an abandoned trial reopens the circuit instead
// of holding its slot forever.
func (b *CircuitBreaker) Release(adm Admission) {
	if adm.trial && adm.done != nil {
		adm.done(false)
	}
}

// StateOf returns the current state for key. Unknown keys are closed.
func (b *CircuitBreaker) StateOf(key string) CircuitState {
	c, ok := b.lookup(key)
	if !ok {
		return StateClosed
	}

	return circuitStateOf(c.cb.State())
}

// Snapshot returns the circuit details for key.
func (b *CircuitBreaker) Snapshot(key string) CircuitSnapshot {
	c, ok := b.lookup(key)
	if !ok {
		return CircuitSnapshot{TargetKey: key, State: StateClosed}
	}

	return c.snapshot(key)
}

// Snapshots returns every known circuit.
func (b *CircuitBreaker) Snapshots() []CircuitSnapshot {
	b.mu.RLock()
	keys := make([]string, 0, len(b.circuits))
	circuits := make([]*circuit, 0, len(b.circuits))

	for key, c := range b.circuits {
		keys = append(keys, key)
		circuits = append(circuits, c)
	}
	b.mu.RUnlock()

	out := make([]CircuitSnapshot, 0, len(circuits))
	for i, c := range circuits {
		out = append(out, c.snapshot(keys[i]))
	}

	return out
}

// Reset forces key back to closed. Admissions issued before the reset are
// ignored.
func (b *CircuitBreaker) Reset(key string) {
	b.mu.Lock()
	old, ok := b.circuits[key]
	b.circuits[key] = b.newCircuit(key)
	b.mu.Unlock()

	if !ok {
		return
	}

	if from := circuitStateOf(old.cb.State()); from != StateClosed {
		b.notify(key, from, StateClosed)
	}
}

func (b *CircuitBreaker) finish(adm Admission, success bool) CircuitState {
	if adm.done != nil {
		adm.done(success)
	}

	return b.StateOf(adm.key)
}

func (b *CircuitBreaker) lookup(key string) (*circuit, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.circuits[key]

	return c, ok
}

func (b *CircuitBreaker) circuit(key string) *circuit {
	if c, ok := b.lookup(key); ok {
		return c
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.circuits[key]; ok {
		return c
	}

	c := b.newCircuit(key)
	b.circuits[key] = c

	return c
}

func (b *CircuitBreaker) newCircuit(key string) *circuit {
	c := &circuit{}
	c.cb = gobreaker.NewTwoStepCircuitBreaker[any](gobreaker.Settings{
		Name:        key,
		MaxRequests: b.successThreshold,
		Timeout:     b.recoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.mu.Lock()
			if to == gobreaker.StateOpen {
				c.openedAt = time.Now()
			} else {
				c.openedAt = time.Time{}
			}
			c.mu.Unlock()

			b.notify(name, circuitStateOf(from), circuitStateOf(to))
		},
	})

	return c
}

func (b *CircuitBreaker) notify(key string, from, to CircuitState) {
	if b.onStateChange != nil {
		b.onStateChange(key, from, to)
	}
}

func (c *circuit) snapshot(key string) CircuitSnapshot {
	state := circuitStateOf(c.cb.State())
	counts := c.cb.Counts()

	snapshot := CircuitSnapshot{
		TargetKey:           key,
		State:               state,
		ConsecutiveFailures: int(counts.ConsecutiveFailures),
	}

	switch state {
	case StateHalfOpen:
		snapshot.TrialSuccesses = int(counts.ConsecutiveSuccesses)
	case StateOpen:
		c.mu.Lock()
		snapshot.OpenedAt = c.openedAt
		c.mu.Unlock()
	case StateClosed:
	}

	return snapshot
}

func circuitStateOf(state gobreaker.State) CircuitState {
	switch state {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
