package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jonwraymond/airelay/apierr"
)

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s has data %T", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordAttempt(ctx, "anthropic", 0)
	m.RecordAttempt(ctx, "anthropic", 1)
	m.RecordRetry(ctx, "anthropic", 0, 100*time.Millisecond, apierr.NewNetwork("reset", apierr.Options{}))
	m.RecordBreakerTransition(ctx, "anthropic", "closed", "open")
	m.RecordBreakerRejection(ctx, "anthropic")
	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, false)
	m.RecordCall(ctx, "anthropic", time.Second, errors.New("boom"))
	m.RecordCall(ctx, "anthropic", time.Second, nil)

	tests := []struct {
		name string
		want int64
	}{
		{MetricAttempts, 2},
		{MetricRetries, 1},
		{MetricBreakerTransitions, 1},
		{MetricBreakerRejections, 1},
		{MetricCacheLookups, 2},
		{MetricCalls, 2},
		{MetricCallErrors, 1},
	}
	for _, tt := range tests {
		if got := collectSum(t, reader, tt.name); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics()
	m.RecordCall(context.Background(), "x", time.Second, errors.New("ignored"))
}

func TestTracer_EndSpanRecordsClassification(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := NewTracer(tp.Tracer("test"))

	ctx := ContextWithCorrelationID(context.Background(), "cid-1")
	_, span := tracer.StartSpan(ctx, CallMeta{Dependency: "anthropic", Operation: "messages", Model: "claude"})
	tracer.EndSpan(span, apierr.NewRateLimited("slow", time.Second, apierr.Options{}))

	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("got %d spans", len(ended))
	}
	s := ended[0]
	if s.Name() != "ai.call.anthropic.messages" {
		t.Errorf("Name() = %q", s.Name())
	}
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v", s.Status().Code)
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["ai.error.kind"].AsString() != "rate_limited" {
		t.Errorf("ai.error.kind = %v", attrs["ai.error.kind"])
	}
	if !attrs["ai.error.retryable"].AsBool() {
		t.Error("ai.error.retryable should be true")
	}
	if attrs["correlation_id"].AsString() != "cid-1" {
		t.Errorf("correlation_id = %v", attrs["correlation_id"])
	}
	if attrs["http.response.status_code"].AsInt64() != 429 {
		t.Errorf("status code = %v", attrs["http.response.status_code"])
	}
}

func TestTracer_Success(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := NewTracer(tp.Tracer("test"))

	_, span := tracer.StartSpan(context.Background(), CallMeta{Dependency: "anthropic"})
	tracer.EndSpan(span, nil)

	s := sr.Ended()[0]
	if s.Name() != "ai.call.anthropic" {
		t.Errorf("Name() = %q", s.Name())
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v", s.Status().Code)
	}
}

func TestNoopTracer(t *testing.T) {
	tracer := NoopTracer()
	_, span := tracer.StartSpan(context.Background(), CallMeta{Dependency: "x"})
	tracer.EndSpan(span, errors.New("ignored"))
}
