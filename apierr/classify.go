package apierr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"
)

// StatusOverloaded is the non-standard status some AI providers use when
// their fleet is saturated.
const StatusOverloaded = 529

// maxMessageLen bounds how much provider body text ends up in a message.
const maxMessageLen = 512

// FromStatus classifies a non-2xx HTTP response. header may be nil; body is
// the (possibly truncated) response payload used only for the message.
func FromStatus(status int, header http.Header, body string, opts Options) *Error {
	if opts.StatusCode == 0 {
		opts.StatusCode = status
	}
	msg := statusMessage(status, body)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewAuthentication(msg, opts)
	case status == http.StatusBadRequest || status == http.StatusNotFound ||
		status == http.StatusUnprocessableEntity || status == http.StatusRequestEntityTooLarge:
		return NewValidation(msg, opts)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewTimeout(msg, 0, opts)
	case status == http.StatusTooManyRequests:
		return NewRateLimited(msg, ParseRetryAfter(header, time.Now()), opts)
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable ||
		status == StatusOverloaded:
		return NewServiceUnavailable(msg, opts)
	default:
		return NewAPI(msg, opts)
	}
}

// ParseRetryAfter reads the Retry-After header as either delta-seconds or an
// HTTP-date. It returns zero when absent or unparseable.
func ParseRetryAfter(header http.Header, now time.Time) time.Duration {
	if header == nil {
		return 0
	}
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// FromTransport classifies an error raised by the transport before any
// response was received. An error that is already classified is returned
// unchanged; reclassification after propagation is not permitted.
func FromTransport(err error, opts Options) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	if opts.Cause == nil {
		opts.Cause = err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeout("request deadline exceeded", 0, opts)
	case errors.Is(err, context.Canceled):
		// Caller gave up; retrying on their behalf would be wrong.
		opts.Retryable = Bool(false)
		return NewAPI("request canceled", opts)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeout("transport timeout", 0, opts)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NewNetwork(fmt.Sprintf("dns lookup failed for %s", dnsErr.Name), opts)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return NewNetwork("connection failed", opts)
	}

	return NewAPI("unclassified transport failure", opts)
}

func statusMessage(status int, body string) string {
	text := http.StatusText(status)
	if text == "" {
		text = "status " + strconv.Itoa(status)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return text
	}
	if len(body) > maxMessageLen {
		cut := maxMessageLen
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	return text + ": " + body
}
