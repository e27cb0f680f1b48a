package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/airelay/apierr"
	"github.com/jonwraymond/airelay/observe"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is rejecting all requests.
	StateOpen
	// StateHalfOpen means the circuit admits a limited number of trial calls.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Circuit breaker defaults.
const (
	DefaultFailureThreshold = 5
	DefaultFailureWindow    = 60 * time.Second
	DefaultResetTimeout     = 30 * time.Second
)

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the protected dependency.
	// Default: "default"
	Name string

	// FailureThreshold is the number of failures within FailureWindow
	// that opens the circuit.
	// Default: 5
	FailureThreshold int

	// FailureWindow is the rolling window failures are counted in.
	// Default: 60s
	FailureWindow time.Duration

	// ResetTimeout is how long the circuit stays open before admitting trial calls.
	// Default: 30s
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the number of concurrent trial calls admitted while
	// half-open.
	// Default: 1
	HalfOpenMaxRequests int

	// IsFailure determines if an error counts as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool

	// OnStateChange is called after every state transition.
	OnStateChange func(from, to State)

	Clock   Clock
	Logger  observe.Logger
	Metrics observe.Metrics
}

// CircuitBreaker is a three-state failure isolation guard for one named
// dependency. The Open to HalfOpen transition is evaluated lazily against
// a stored deadline; no timers run in the background.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       State
	generation  uint64
	failures    []time.Time
	lastFailure time.Time
	openUntil   time.Time
	trials      int
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.Name == "" {
		config.Name = "default"
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	if config.FailureWindow <= 0 {
		config.FailureWindow = DefaultFailureWindow
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = DefaultResetTimeout
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	if config.Clock == nil {
		config.Clock = SystemClock()
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	if config.Metrics == nil {
		config.Metrics = observe.NoopMetrics()
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Name returns the protected dependency name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Execute runs op through the circuit breaker. When the breaker rejects the
// call, op is not invoked and a CircuitOpen error is returned. Otherwise
// op's error is returned unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	gen, err := cb.beforeRequest(ctx)
	if err != nil {
		return err
	}

	err = op(ctx)
	cb.afterRequest(ctx, gen, err)
	return err
}

// ExecuteValue runs op through cb and returns its value.
func ExecuteValue[T any](ctx context.Context, cb *CircuitBreaker, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		out = v
		return err
	})
	return out, err
}

// State returns the effective circuit state. It has no side effects: an
// open circuit whose reset timeout has elapsed reports StateHalfOpen, and
// the transition itself is recorded on the next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.effectiveStateLocked(cb.config.Clock.Now())
}

// Reset forces the circuit closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.effectiveStateLocked(cb.config.Clock.Now())
	cb.setStateLocked(StateClosed, time.Time{})
	cb.mu.Unlock()

	if from != StateClosed {
		cb.notify(context.Background(), from, StateClosed, "circuit reset")
	}
}

// Snapshot returns a point-in-time view of the breaker.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.config.Clock.Now()
	snap := Snapshot{
		Name:        cb.config.Name,
		State:       cb.effectiveStateLocked(now),
		Failures:    cb.windowFailuresLocked(now),
		LastFailure: cb.lastFailure,
	}
	if snap.State == StateOpen {
		snap.OpenUntil = cb.openUntil
	}
	if cb.state == StateHalfOpen {
		snap.TrialsInFlight = cb.trials
	}
	return snap
}

// Snapshot is a point-in-time view of a circuit breaker.
type Snapshot struct {
	Name           string
	State          State
	Failures       int
	LastFailure    time.Time
	OpenUntil      time.Time
	TrialsInFlight int
}

func (cb *CircuitBreaker) beforeRequest(ctx context.Context) (uint64, error) {
	cb.mu.Lock()
	now := cb.config.Clock.Now()

	var promoted bool
	if cb.state == StateOpen && !now.Before(cb.openUntil) {
		cb.setStateLocked(StateHalfOpen, now)
		promoted = true
	}

	var rejected bool
	switch cb.state {
	case StateOpen:
		rejected = true
	case StateHalfOpen:
		if cb.trials >= cb.config.HalfOpenMaxRequests {
			rejected = true
		} else {
			cb.trials++
		}
	}
	gen := cb.generation
	cb.mu.Unlock()

	if promoted {
		cb.notify(ctx, StateOpen, StateHalfOpen, "circuit half-open, admitting trial calls")
	}
	if rejected {
		cb.config.Metrics.RecordBreakerRejection(ctx, cb.config.Name)
		cb.config.Logger.Debug(ctx, "circuit rejected call", observe.F("breaker", cb.config.Name))
		return 0, apierr.NewCircuitOpen(cb.config.Name, apierr.Options{
			CorrelationID: observe.CorrelationIDFromContext(ctx),
		})
	}
	return gen, nil
}

func (cb *CircuitBreaker) afterRequest(ctx context.Context, gen uint64, err error) {
	isFailure := cb.config.IsFailure(err)

	cb.mu.Lock()
	// Results from calls admitted before the last transition are stale.
	if gen != cb.generation {
		cb.mu.Unlock()
		return
	}

	now := cb.config.Clock.Now()
	from := cb.state
	switch cb.state {
	case StateClosed:
		if isFailure {
			cb.pruneLocked(now)
			cb.failures = append(cb.failures, now)
			cb.lastFailure = now
			if len(cb.failures) >= cb.config.FailureThreshold {
				cb.setStateLocked(StateOpen, now)
			}
		}

	case StateHalfOpen:
		if isFailure {
			cb.lastFailure = now
			cb.setStateLocked(StateOpen, now)
		} else {
			cb.setStateLocked(StateClosed, now)
		}
	}
	to := cb.state
	failures := len(cb.failures)
	cb.mu.Unlock()

	if from == to {
		return
	}
	switch to {
	case StateOpen:
		cb.notify(ctx, from, to, "circuit opened",
			observe.F("failures", failures),
			observe.F("reset_timeout_ms", cb.config.ResetTimeout.Milliseconds()),
			observe.Err(err),
		)
	case StateClosed:
		cb.notify(ctx, from, to, "circuit closed")
	}
}

// setStateLocked moves to state and resets the counters that belong to it.
func (cb *CircuitBreaker) setStateLocked(state State, now time.Time) {
	cb.state = state
	cb.generation++
	cb.trials = 0
	switch state {
	case StateOpen:
		cb.openUntil = now.Add(cb.config.ResetTimeout)
	case StateClosed:
		cb.failures = nil
		cb.openUntil = time.Time{}
	}
}

func (cb *CircuitBreaker) effectiveStateLocked(now time.Time) State {
	if cb.state == StateOpen && !now.Before(cb.openUntil) {
		return StateHalfOpen
	}
	return cb.state
}

// pruneLocked drops failures that fell out of the rolling window.
func (cb *CircuitBreaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-cb.config.FailureWindow)
	i := 0
	for i < len(cb.failures) && !cb.failures[i].After(cutoff) {
		i++
	}
	cb.failures = cb.failures[i:]
}

func (cb *CircuitBreaker) windowFailuresLocked(now time.Time) int {
	cutoff := now.Add(-cb.config.FailureWindow)
	n := 0
	for _, t := range cb.failures {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

func (cb *CircuitBreaker) notify(ctx context.Context, from, to State, msg string, fields ...observe.Field) {
	fields = append(fields,
		observe.F("breaker", cb.config.Name),
		observe.F("from", from.String()),
		observe.F("to", to.String()),
	)
	if to == StateOpen {
		cb.config.Logger.Warn(ctx, msg, fields...)
	} else {
		cb.config.Logger.Info(ctx, msg, fields...)
	}
	cb.config.Metrics.RecordBreakerTransition(ctx, cb.config.Name, from.String(), to.String())
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}
