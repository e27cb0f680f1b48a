package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/airelay/apierr"
)

// CallMeta describes an outbound call for telemetry purposes.
type CallMeta struct {
	Dependency    string // Protected dependency name (required)
	Operation     string // Operation on the dependency (optional)
	Model         string // Model identifier (optional)
	CorrelationID string // Request correlation id (optional)
}

// SpanName returns the deterministic span name for this call.
// Format: ai.call.<dependency>.<operation> or ai.call.<dependency>
func (m CallMeta) SpanName() string {
	if m.Operation != "" {
		return "ai.call." + m.Dependency + "." + m.Operation
	}
	return "ai.call." + m.Dependency
}

// Tracer wraps OpenTelemetry tracing with call-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for an outbound call.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error and its classification.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("ai.dependency", meta.Dependency),
		attribute.Bool("ai.error", false),
	}
	if meta.Operation != "" {
		attrs = append(attrs, attribute.String("ai.operation", meta.Operation))
	}
	if meta.Model != "" {
		attrs = append(attrs, attribute.String("ai.model", meta.Model))
	}
	cid := meta.CorrelationID
	if cid == "" {
		cid = CorrelationIDFromContext(ctx)
	}
	if cid != "" {
		attrs = append(attrs, attribute.String("correlation_id", cid))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("ai.error", true))
		if e, ok := apierr.As(err); ok {
			span.SetAttributes(
				attribute.String("ai.error.kind", string(e.Kind)),
				attribute.Bool("ai.error.retryable", e.Retryable()),
			)
			if e.StatusCode != 0 {
				span.SetAttributes(attribute.Int("http.response.status_code", e.StatusCode))
			}
		}
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NoopTracer returns a Tracer whose spans are never recorded.
func NoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
