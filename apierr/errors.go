package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Kind tags an Error with its place in the failure taxonomy.
type Kind string

const (
	// KindAuthentication means the provider credential is invalid or missing.
	KindAuthentication Kind = "authentication"
	// KindValidation means the caller supplied malformed input.
	KindValidation Kind = "validation"
	// KindRateLimited means the provider throttled the request.
	KindRateLimited Kind = "rate_limited"
	// KindTimeout means the request did not complete in time.
	KindTimeout Kind = "timeout"
	// KindServiceUnavailable means the provider returned a 5xx-class failure.
	KindServiceUnavailable Kind = "service_unavailable"
	// KindNetwork means the transport failed (DNS, connection reset, ...).
	KindNetwork Kind = "network"
	// KindResponseParsing means the transport succeeded but the payload was malformed.
	KindResponseParsing Kind = "response_parsing"
	// KindCircuitOpen is synthesized locally by a circuit breaker.
	KindCircuitOpen Kind = "circuit_open"
	// KindMaxRetriesExceeded is synthesized by the retry policy on exhaustion.
	KindMaxRetriesExceeded Kind = "max_retries_exceeded"
	// KindAPI is the generic provider failure; retryable iff the status is 5xx.
	KindAPI Kind = "api"
)

// Kinds lists every kind in the taxonomy.
var Kinds = []Kind{
	KindAuthentication,
	KindValidation,
	KindRateLimited,
	KindTimeout,
	KindServiceUnavailable,
	KindNetwork,
	KindResponseParsing,
	KindCircuitOpen,
	KindMaxRetriesExceeded,
	KindAPI,
}

// kindDefaults holds the default retryability and canonical status per kind.
var kindDefaults = map[Kind]struct {
	retryable bool
	status    int
}{
	KindAuthentication:     {false, http.StatusUnauthorized},
	KindValidation:         {false, http.StatusBadRequest},
	KindRateLimited:        {true, http.StatusTooManyRequests},
	KindTimeout:            {true, http.StatusRequestTimeout},
	KindServiceUnavailable: {true, http.StatusServiceUnavailable},
	KindNetwork:            {true, 0},
	KindResponseParsing:    {false, 0},
	KindCircuitOpen:        {false, http.StatusServiceUnavailable},
	KindMaxRetriesExceeded: {false, 0},
}

// Valid reports whether k is a member of the taxonomy.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// String returns the kind tag.
func (k Kind) String() string {
	return string(k)
}

// Options carries the optional metadata every constructor accepts.
type Options struct {
	// CorrelationID ties the error to one logical request.
	CorrelationID string

	// StatusCode overrides the kind's canonical status code.
	StatusCode int

	// Retryable overrides the kind's default retryability when non-nil.
	Retryable *bool

	// Cause is the underlying error, exposed through Unwrap.
	Cause error
}

// Bool returns a pointer to b, for Options.Retryable.
func Bool(b bool) *bool {
	return &b
}

// Error is a classified failure. Once constructed it is never mutated;
// retryability in particular is fixed at construction.
type Error struct {
	Kind          Kind
	Message       string
	Timestamp     time.Time
	CorrelationID string
	StatusCode    int

	// RetryAfter is the server-requested wait for KindRateLimited (zero if absent).
	RetryAfter time.Duration

	// Timeout is the elapsed limit for KindTimeout.
	Timeout time.Duration

	// Attempts is the number of invocations made, for KindMaxRetriesExceeded.
	Attempts int

	Cause error

	retryable bool
}

// New constructs an Error of the given kind, deriving status and
// retryability from the kind unless opts overrides them.
func New(kind Kind, message string, opts Options) *Error {
	if !kind.Valid() {
		kind = KindAPI
	}

	defaults := kindDefaults[kind]
	status := defaults.status
	if opts.StatusCode != 0 {
		status = opts.StatusCode
	}

	retryable := defaults.retryable
	if kind == KindAPI {
		retryable = status >= 500 && status <= 599
	}
	if opts.Retryable != nil {
		retryable = *opts.Retryable
	}

	return &Error{
		Kind:          kind,
		Message:       message,
		Timestamp:     time.Now(),
		CorrelationID: opts.CorrelationID,
		StatusCode:    status,
		Cause:         opts.Cause,
		retryable:     retryable,
	}
}

// NewAuthentication creates an authentication error.
func NewAuthentication(message string, opts Options) *Error {
	return New(KindAuthentication, message, opts)
}

// NewValidation creates a validation error.
func NewValidation(message string, opts Options) *Error {
	return New(KindValidation, message, opts)
}

// NewRateLimited creates a rate limit error. A positive retryAfter is the
// server's instruction and overrides computed backoff.
func NewRateLimited(message string, retryAfter time.Duration, opts Options) *Error {
	e := New(KindRateLimited, message, opts)
	if retryAfter > 0 {
		e.RetryAfter = retryAfter
	}
	return e
}

// NewTimeout creates a timeout error recording the limit that elapsed.
func NewTimeout(message string, elapsed time.Duration, opts Options) *Error {
	e := New(KindTimeout, message, opts)
	e.Timeout = elapsed
	return e
}

// NewServiceUnavailable creates an upstream 5xx-class error.
func NewServiceUnavailable(message string, opts Options) *Error {
	return New(KindServiceUnavailable, message, opts)
}

// NewNetwork creates a transport-level error.
func NewNetwork(message string, opts Options) *Error {
	return New(KindNetwork, message, opts)
}

// NewResponseParsing creates a malformed payload error.
func NewResponseParsing(message string, opts Options) *Error {
	return New(KindResponseParsing, message, opts)
}

// NewCircuitOpen creates the error a breaker returns when it rejects a call.
func NewCircuitOpen(dependency string, opts Options) *Error {
	return New(KindCircuitOpen, fmt.Sprintf("circuit breaker for %q is open", dependency), opts)
}

// NewMaxRetriesExceeded wraps the final error after attempts invocations.
func NewMaxRetriesExceeded(attempts int, last error, opts Options) *Error {
	if opts.Cause == nil {
		opts.Cause = last
	}
	msg := fmt.Sprintf("operation failed after %d attempt(s)", attempts)
	e := New(KindMaxRetriesExceeded, msg, opts)
	e.Attempts = attempts
	return e
}

// NewAPI creates a generic provider error; retryable iff status is 5xx.
func NewAPI(message string, opts Options) *Error {
	return New(KindAPI, message, opts)
}

// Retryable reports whether the failure may succeed on a later attempt.
func (e *Error) Retryable() bool {
	return e.retryable
}

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("apierr: ")
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindTimeout})
// works as a kind test.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// IsKind reports whether the outermost *Error in err's chain has kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// IsRetryable consults the retryable flag of the outermost *Error.
// Unclassified errors are not retryable.
func IsRetryable(err error) bool {
	if e, ok := As(err); ok {
		return e.Retryable()
	}
	return false
}

// RetryAfterOf returns the server-requested delay carried by a RateLimited
// error, if any.
func RetryAfterOf(err error) (time.Duration, bool) {
	e, ok := As(err)
	if !ok || e.Kind != KindRateLimited || e.RetryAfter <= 0 {
		return 0, false
	}
	return e.RetryAfter, true
}
