package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/airelay/apierr"
)

// Metrics records reliability and cache metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordAttempt counts one invocation of a protected operation.
	RecordAttempt(ctx context.Context, dependency string, attempt int)

	// RecordRetry counts a scheduled retry and its backoff delay.
	RecordRetry(ctx context.Context, dependency string, attempt int, delay time.Duration, err error)

	// RecordBreakerTransition counts a circuit breaker state change.
	RecordBreakerTransition(ctx context.Context, breaker, from, to string)

	// RecordBreakerRejection counts a call rejected by an open breaker.
	RecordBreakerRejection(ctx context.Context, breaker string)

	// RecordCacheLookup counts a response cache hit or miss.
	RecordCacheLookup(ctx context.Context, hit bool)

	// RecordCall records the outcome and duration of a facade call.
	RecordCall(ctx context.Context, dependency string, duration time.Duration, err error)
}

// Instrument names.
const (
	MetricAttempts           = "airelay.attempts"
	MetricRetries            = "airelay.retries"
	MetricRetryDelay         = "airelay.retry.delay_ms"
	MetricBreakerTransitions = "airelay.breaker.transitions"
	MetricBreakerRejections  = "airelay.breaker.rejections"
	MetricCacheLookups       = "airelay.cache.lookups"
	MetricCalls              = "airelay.calls"
	MetricCallErrors         = "airelay.call.errors"
	MetricCallDuration       = "airelay.call.duration_ms"
)

type metricsImpl struct {
	attempts     metric.Int64Counter
	retries      metric.Int64Counter
	retryDelay   metric.Float64Histogram
	transitions  metric.Int64Counter
	rejections   metric.Int64Counter
	cacheLookups metric.Int64Counter
	calls        metric.Int64Counter
	callErrors   metric.Int64Counter
	callDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.attempts, MetricAttempts, "Invocations of protected operations", "{call}"},
		{&m.retries, MetricRetries, "Scheduled retries", "{retry}"},
		{&m.transitions, MetricBreakerTransitions, "Circuit breaker state transitions", "{transition}"},
		{&m.rejections, MetricBreakerRejections, "Calls rejected by an open circuit", "{call}"},
		{&m.cacheLookups, MetricCacheLookups, "Response cache lookups", "{lookup}"},
		{&m.calls, MetricCalls, "Reliability facade calls", "{call}"},
		{&m.callErrors, MetricCallErrors, "Failed reliability facade calls", "{error}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
	}

	m.retryDelay, err = meter.Float64Histogram(
		MetricRetryDelay,
		metric.WithDescription("Backoff delay before a retry in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.callDuration, err = meter.Float64Histogram(
		MetricCallDuration,
		metric.WithDescription("Reliability facade call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordAttempt(ctx context.Context, dependency string, attempt int) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dependency", dependency),
		attribute.Bool("first", attempt == 0),
	))
}

func (m *metricsImpl) RecordRetry(ctx context.Context, dependency string, _ int, delay time.Duration, err error) {
	opt := metric.WithAttributes(
		attribute.String("dependency", dependency),
		attribute.String("error.kind", kindAttr(err)),
	)
	m.retries.Add(ctx, 1, opt)
	m.retryDelay.Record(ctx, float64(delay.Milliseconds()), opt)
}

func (m *metricsImpl) RecordBreakerTransition(ctx context.Context, breaker, from, to string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", breaker),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *metricsImpl) RecordBreakerRejection(ctx context.Context, breaker string) {
	m.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("breaker", breaker)))
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

func (m *metricsImpl) RecordCall(ctx context.Context, dependency string, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("dependency", dependency))
	m.calls.Add(ctx, 1, opt)
	if err != nil {
		m.callErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("dependency", dependency),
			attribute.String("error.kind", kindAttr(err)),
		))
	}
	m.callDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func kindAttr(err error) string {
	if k := apierr.KindOf(err); k != "" {
		return string(k)
	}
	return "unclassified"
}

type noopMetrics struct{}

// NoopMetrics returns a Metrics that records nothing.
func NoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordAttempt(context.Context, string, int)                      {}
func (noopMetrics) RecordRetry(context.Context, string, int, time.Duration, error)  {}
func (noopMetrics) RecordBreakerTransition(context.Context, string, string, string) {}
func (noopMetrics) RecordBreakerRejection(context.Context, string)                  {}
func (noopMetrics) RecordCacheLookup(context.Context, bool)                         {}
func (noopMetrics) RecordCall(context.Context, string, time.Duration, error)        {}
