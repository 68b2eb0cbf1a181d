package observer

import (
	"context"
	"fmt"

	"github.com/nevindra/modulebox"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NewTracer returns a modulebox.Tracer backed by the global OTEL
// TracerProvider. Call Init first to configure the provider; otherwise
// spans go to a no-op backend.
func NewTracer() modulebox.Tracer {
	return NewTracerFrom(otel.GetTracerProvider())
}

// NewTracerFrom returns a modulebox.Tracer backed by tp.
func NewTracerFrom(tp trace.TracerProvider) modulebox.Tracer {
	return &otelTracer{inner: tp.Tracer(scopeName)}
}

type otelTracer struct {
	inner trace.Tracer
}

func (t *otelTracer) Start(ctx context.Context, name string, attrs ...modulebox.SpanAttr) (context.Context, modulebox.Span) {
	ctx, span := t.inner.Start(ctx, name, trace.WithAttributes(toOTELAttrs(attrs)...))
	return ctx, &otelSpan{inner: span}
}

type otelSpan struct {
	inner trace.Span
}

func (s *otelSpan) SetAttr(attrs ...modulebox.SpanAttr) {
	s.inner.SetAttributes(toOTELAttrs(attrs)...)
}

func (s *otelSpan) Event(name string, attrs ...modulebox.SpanAttr) {
	s.inner.AddEvent(name, trace.WithAttributes(toOTELAttrs(attrs)...))
}

func (s *otelSpan) Error(err error) {
	s.inner.RecordError(err)
	s.inner.SetStatus(codes.Error, err.Error())
}

func (s *otelSpan) End() { s.inner.End() }

func toOTELAttrs(attrs []modulebox.SpanAttr) []attribute.KeyValue {
	out := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		out[i] = toOTELAttr(a)
	}
	return out
}

// toOTELAttr keeps the attribute's native type where OTEL has one and
// falls back to its string form.
func toOTELAttr(a modulebox.SpanAttr) attribute.KeyValue {
	switch v := a.Value.(type) {
	case string:
		return attribute.String(a.Key, v)
	case int:
		return attribute.Int(a.Key, v)
	case int64:
		return attribute.Int64(a.Key, v)
	case float64:
		return attribute.Float64(a.Key, v)
	case bool:
		return attribute.Bool(a.Key, v)
	default:
		return attribute.String(a.Key, fmt.Sprint(v))
	}
}

var (
	_ modulebox.Tracer = (*otelTracer)(nil)
	_ modulebox.Span   = (*otelSpan)(nil)
)
