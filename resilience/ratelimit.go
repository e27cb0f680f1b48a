package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonwraymond/airelay/apierr"
	"github.com/jonwraymond/airelay/observe"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Rate is the number of operations allowed per second.
	// Default: 10
	Rate float64

	// Burst is the maximum burst size.
	// Default: 5
	Burst int

	// WaitOnLimit waits for a token instead of rejecting.
	// Default: false
	WaitOnLimit bool

	// MaxWait is the maximum time to wait for a token.
	// Default: 1 second
	MaxWait time.Duration
}

// RateLimiter throttles outbound calls with a token bucket. Rejections are
// RateLimited errors whose retry-after is the time until the next token.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 10
	}
	if config.Burst <= 0 {
		config.Burst = 5
	}
	if config.MaxWait <= 0 {
		config.MaxWait = time.Second
	}

	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
	}
}

// Allow reports whether a call may proceed now, consuming a token if so.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Acquire takes one token, waiting up to MaxWait when WaitOnLimit is set.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	cid := observe.CorrelationIDFromContext(ctx)

	if !rl.config.WaitOnLimit {
		now := time.Now()
		res := rl.limiter.ReserveN(now, 1)
		if !res.OK() {
			return apierr.NewRateLimited("local rate limit exceeded", 0, apierr.Options{CorrelationID: cid})
		}
		if d := res.DelayFrom(now); d > 0 {
			res.CancelAt(now)
			return apierr.NewRateLimited("local rate limit exceeded", d, apierr.Options{CorrelationID: cid})
		}
		return nil
	}

	wctx, cancel := context.WithTimeout(ctx, rl.config.MaxWait)
	defer cancel()

	if err := rl.limiter.Wait(wctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apierr.NewRateLimited("timed out waiting for rate limit", 0, apierr.Options{CorrelationID: cid, Cause: err})
	}
	return nil
}

// Execute runs op if a token is available.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := rl.Acquire(ctx); err != nil {
		return err
	}
	return op(ctx)
}

// Tokens returns the number of tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.Tokens()
}

// Config returns the rate limiter configuration.
func (rl *RateLimiter) Config() RateLimiterConfig {
	return rl.config
}
