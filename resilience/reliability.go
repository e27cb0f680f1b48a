package resilience

import (
	"context"
	"time"

	"github.com/jonwraymond/airelay/observe"
)

// Reliability composes the resilience patterns protecting one dependency
// into a single call contract.
//
// The execution order is:
// 1. Rate Limiter (if configured) - limits request rate
// 2. Bulkhead (if configured) - limits concurrency
// 3. Circuit Breaker - fails fast once per logical call
// 4. Retry - retries inside a single breaker-admitted call
// 5. Timeout (if configured) - bounds each attempt
//
// A burst of retries for one logical call counts as at most one failure or
// success toward the breaker's threshold.
type Reliability struct {
	breaker        *CircuitBreaker
	retry          *Retry
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	attemptTimeout *Timeout
	tracer         observe.Tracer
	metrics        observe.Metrics
	logger         observe.Logger
}

// ReliabilityOption configures a Reliability.
type ReliabilityOption func(*Reliability)

// NewReliability creates a facade around breaker and retry. A nil breaker
// or retry is replaced by one with default configuration.
func NewReliability(breaker *CircuitBreaker, retry *Retry, opts ...ReliabilityOption) *Reliability {
	if breaker == nil {
		breaker = NewCircuitBreaker(CircuitBreakerConfig{})
	}
	if retry == nil {
		retry = NewRetry(DefaultRetryConfig())
	}

	r := &Reliability{
		breaker: breaker,
		retry:   retry,
		tracer:  observe.NoopTracer(),
		metrics: observe.NoopMetrics(),
		logger:  observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithRateLimiter throttles calls before they reach the breaker.
func WithRateLimiter(rl *RateLimiter) ReliabilityOption {
	return func(r *Reliability) {
		r.rateLimiter = rl
	}
}

// WithBulkhead caps concurrent calls before they reach the breaker.
func WithBulkhead(b *Bulkhead) ReliabilityOption {
	return func(r *Reliability) {
		r.bulkhead = b
	}
}

// WithAttemptTimeout bounds every individual attempt.
func WithAttemptTimeout(d time.Duration) ReliabilityOption {
	return func(r *Reliability) {
		if d > 0 {
			r.attemptTimeout = NewTimeout(TimeoutConfig{Timeout: d})
		}
	}
}

// WithTracer records one span per logical call.
func WithTracer(t observe.Tracer) ReliabilityOption {
	return func(r *Reliability) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithMetrics records call outcomes and durations.
func WithMetrics(m observe.Metrics) ReliabilityOption {
	return func(r *Reliability) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithLogger sets the logger for call failures.
func WithLogger(l observe.Logger) ReliabilityOption {
	return func(r *Reliability) {
		if l != nil {
			r.logger = l
		}
	}
}

// Breaker returns the facade's circuit breaker.
func (r *Reliability) Breaker() *CircuitBreaker {
	return r.breaker
}

// Execute runs op through every configured pattern. The correlation id
// carried by ctx is attached to every error the facade synthesizes.
func (r *Reliability) Execute(ctx context.Context, op func(context.Context) error) error {
	name := r.breaker.Name()
	start := time.Now()

	ctx, span := r.tracer.StartSpan(ctx, observe.CallMeta{
		Dependency:    name,
		CorrelationID: observe.CorrelationIDFromContext(ctx),
	})
	err := r.execute(ctx, op)
	r.tracer.EndSpan(span, err)
	r.metrics.RecordCall(ctx, name, time.Since(start), err)

	if err != nil {
		r.logger.Error(ctx, "protected call failed",
			observe.F("dependency", name),
			observe.F("duration_ms", time.Since(start).Milliseconds()),
			observe.Err(err),
		)
	}
	return err
}

func (r *Reliability) execute(ctx context.Context, op func(context.Context) error) error {
	attempt := op
	if r.attemptTimeout != nil {
		attempt = func(ctx context.Context) error {
			return r.attemptTimeout.Execute(ctx, op)
		}
	}

	execute := func(ctx context.Context) error {
		return r.breaker.Execute(ctx, func(ctx context.Context) error {
			return r.retry.Execute(ctx, attempt)
		})
	}

	if r.bulkhead != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return r.bulkhead.Execute(ctx, inner)
		}
	}

	if r.rateLimiter != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return r.rateLimiter.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}

// WithReliability runs op through r and returns its value.
func WithReliability[T any](ctx context.Context, r *Reliability, op func(context.Context) (T, error)) (T, error) {
	var res attemptResult[T]
	return res.take(r.Execute(ctx, res.wrap(op)))
}
