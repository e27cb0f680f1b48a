package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/airelay/apierr"
	"github.com/jonwraymond/airelay/observe"
)

// TimeoutConfig configures the timeout wrapper.
type TimeoutConfig struct {
	// Timeout is the maximum duration of a single attempt.
	// Default: 30 seconds
	Timeout time.Duration
}

// Timeout bounds each invocation of an operation.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Timeout{config: config}
}

// Execute runs op with a deadline. When the deadline passes first, a
// retryable Timeout error is returned even if op has not yet returned.
// Cancellation of the parent context is returned as-is.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(tctx)
	}()

	var err error
	select {
	case err = <-done:
		if err == nil || !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	case <-tctx.Done():
		err = tctx.Err()
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := apierr.As(err); ok {
		return err
	}
	return apierr.NewTimeout("attempt timed out", time.Since(start), apierr.Options{
		CorrelationID: observe.CorrelationIDFromContext(ctx),
		Cause:         err,
	})
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}

// ExecuteWithTimeout is a convenience function to run an operation with timeout.
func ExecuteWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	return NewTimeout(TimeoutConfig{Timeout: timeout}).Execute(ctx, op)
}
