// Package apierr defines the failure taxonomy for outbound AI completion calls.
//
// Every failure raised by the reliability core is an *Error carrying a Kind,
// an immutable retryable flag, an optional status code and correlation id,
// and an optional wrapped cause. The retry policy and circuit breaker consult
// only the Kind and the retryable flag; they never inspect message text.
//
// Transport failures are classified once, at the point of invocation, using
// FromStatus (non-2xx responses) or FromTransport (no response at all).
package apierr
