package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jonwraymond/airelay/apierr"
	"github.com/jonwraymond/airelay/observe"
)

// Retry defaults.
const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 10 * time.Second
	DefaultJitterFactor = 0.1
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero disables retrying. Negative selects the default.
	// Default: 3
	MaxRetries int

	// InitialDelay is the backoff base before the first retry.
	// Default: 1s
	InitialDelay time.Duration

	// MaxDelay caps the computed backoff, before jitter.
	// Default: 10s
	MaxDelay time.Duration

	// JitterFactor perturbs each delay by up to ±JitterFactor/2 of itself.
	// Zero disables jitter. Negative selects the default.
	// Default: 0.1
	JitterFactor float64

	// IsRetryable decides whether a failed attempt may be retried.
	// Default: apierr.IsRetryable.
	IsRetryable func(err error) bool

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Dependency names the protected dependency in logs and metrics.
	Dependency string

	Logger  observe.Logger
	Metrics observe.Metrics
	Clock   Clock

	// Rand returns a value in [0, 1). Default: math/rand/v2.Float64.
	Rand func() float64
}

// DefaultRetryConfig returns a RetryConfig with every default filled in.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		JitterFactor: DefaultJitterFactor,
	}
}

// Retry runs operations with exponential backoff and jitter.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxRetries < 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultInitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultMaxDelay
	}
	if config.JitterFactor < 0 {
		config.JitterFactor = DefaultJitterFactor
	}
	if config.IsRetryable == nil {
		config.IsRetryable = apierr.IsRetryable
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	if config.Metrics == nil {
		config.Metrics = observe.NoopMetrics()
	}
	if config.Clock == nil {
		config.Clock = SystemClock()
	}
	if config.Rand == nil {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		config.Rand = rand.Float64
	}

	return &Retry{config: config}
}

// Execute runs op until it succeeds, fails with a non-retryable error, or
// MaxRetries retries have been spent. It invokes op at most MaxRetries+1
// times, strictly sequentially.
//
// Once retrying is enabled, every failure is returned as a
// MaxRetriesExceeded error wrapping the last attempt's error. With
// MaxRetries == 0 the attempt's error is returned unchanged.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	cid := observe.CorrelationIDFromContext(ctx)
	logger := r.config.Logger

	var lastErr error
	attempts := 0
	for attempt := 0; ; attempt++ {
		r.config.Metrics.RecordAttempt(ctx, r.config.Dependency, attempt)
		attempts++

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt >= r.config.MaxRetries || !r.config.IsRetryable(err) {
			break
		}

		delay := r.Delay(attempt, err)

		logger.Warn(ctx, "retrying operation",
			observe.F("dependency", r.config.Dependency),
			observe.F("attempt", attempt+1),
			observe.F("max_retries", r.config.MaxRetries),
			observe.F("delay_ms", delay.Milliseconds()),
			observe.Err(err),
		)
		r.config.Metrics.RecordRetry(ctx, r.config.Dependency, attempt+1, delay, err)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt+1, err, delay)
		}

		if serr := r.config.Clock.Sleep(ctx, delay); serr != nil {
			return interrupted(serr, delay, cid)
		}
	}

	if r.config.MaxRetries == 0 {
		return lastErr
	}
	return apierr.NewMaxRetriesExceeded(attempts, lastErr, apierr.Options{CorrelationID: cid})
}

// Delay returns the wait before the retry that follows attempt (0-based).
// A rate-limited error carrying a retry-after hint overrides the backoff.
func (r *Retry) Delay(attempt int, err error) time.Duration {
	if d, ok := apierr.RetryAfterOf(err); ok {
		return d
	}

	backoff := float64(r.config.InitialDelay) * math.Pow(2, float64(attempt))
	if backoff > float64(r.config.MaxDelay) {
		backoff = float64(r.config.MaxDelay)
	}
	backoff += r.config.JitterFactor * backoff * (r.config.Rand() - 0.5)
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// interrupted converts a context error raised while sleeping between
// attempts. Deadlines surface as Timeout; cancellation is returned as-is.
func interrupted(err error, waited time.Duration, cid string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierr.NewTimeout("deadline exceeded while waiting to retry", waited,
			apierr.Options{CorrelationID: cid, Cause: err})
	}
	return err
}

// WithRetry runs op under r and returns its value.
func WithRetry[T any](ctx context.Context, r *Retry, op func(context.Context) (T, error)) (T, error) {
	var res attemptResult[T]
	return res.take(r.Execute(ctx, res.wrap(op)))
}
