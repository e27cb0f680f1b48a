// Package resilience protects outbound calls to an AI completion provider.
//
// # Patterns
//
//   - Retry: exponential backoff with jitter, driven by the apierr
//     retryable flag. A rate-limited error's retry-after hint replaces the
//     computed delay. At most MaxRetries+1 attempts are made.
//
//   - Circuit Breaker: three-state guard per dependency. Failures are
//     counted in a rolling window; the Open to HalfOpen transition is
//     evaluated lazily against a stored deadline, so State is a pure read
//     and tests drive time through an injected Clock.
//
//   - Registry: one breaker per dependency name, owned by the caller.
//
//   - Rate Limiter, Bulkhead, Timeout: optional throttling, concurrency
//     and per-attempt limits, all failing with apierr kinds.
//
// # Usage
//
//	breakers := resilience.NewRegistry(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    ResetTimeout:     30 * time.Second,
//	})
//
//	rel := resilience.NewReliability(
//	    breakers.Get("anthropic"),
//	    resilience.NewRetry(resilience.DefaultRetryConfig()),
//	    resilience.WithAttemptTimeout(60*time.Second),
//	)
//
//	msg, err := resilience.WithReliability(ctx, rel, func(ctx context.Context) (*Message, error) {
//	    return client.Complete(ctx, req)
//	})
//
// The breaker wraps the retry loop, so a burst of retries for one logical
// call counts once toward the breaker's threshold.
package resilience
