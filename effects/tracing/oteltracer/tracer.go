// Package oteltracer adapts an OpenTelemetry tracer to tracing.Tracer.
//
// Trace context travels in W3C traceparent/tracestate headers unless another
// propagator is configured. Tags become span attributes; the error tag also
// marks the span status as failed.
package oteltracer

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/on-the-ground/effect_ive_tracing/effects"
	"github.com/on-the-ground/effect_ive_tracing/effects/tracing"
)

// ErrForeignSpanContext is returned by Inject for span contexts this adapter did not produce.
var ErrForeignSpanContext = errors.New("span context was not produced by an OpenTelemetry tracer")

// SpanContext wraps trace.SpanContext.
type SpanContext struct {
	sc trace.SpanContext
}

func (s SpanContext) TraceID() string {
	if !s.sc.HasTraceID() {
		return ""
	}
	return s.sc.TraceID().String()
}

func (s SpanContext) SpanID() string {
	if !s.sc.HasSpanID() {
		return ""
	}
	return s.sc.SpanID().String()
}

func (s SpanContext) OTel() trace.SpanContext {
	return s.sc
}

type Tracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

var _ tracing.Tracer = (*Tracer)(nil)

type Option func(*Tracer)

func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(t *Tracer) {
		t.propagator = p
	}
}

func New(tracer trace.Tracer, opts ...Option) *Tracer {
	t := &Tracer{
		tracer:     tracer,
		propagator: propagation.TraceContext{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FactoryFromProvider builds a factory naming its tracer after the instrumentation scope.
func FactoryFromProvider(tp trace.TracerProvider, name string, opts ...Option) tracing.TracerFactory {
	return tracing.TracerFactory{
		Factory: effects.Lift(func() tracing.Tracer {
			return New(tp.Tracer(name), opts...)
		}),
	}
}

func (t *Tracer) Extract(carrier tracing.Carrier) (tracing.SpanContext, error) {
	ctx := t.propagator.Extract(context.Background(), carrier)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil, tracing.ErrSpanContextNotFound
	}
	return SpanContext{sc: sc}, nil
}

func (t *Tracer) Inject(sc tracing.SpanContext, carrier tracing.Carrier) error {
	osc, ok := sc.(SpanContext)
	if !ok {
		return fmt.Errorf("%w: %T", ErrForeignSpanContext, sc)
	}
	t.propagator.Inject(trace.ContextWithSpanContext(context.Background(), osc.sc), carrier)
	return nil
}

func (t *Tracer) StartSpan(operation string, opts ...tracing.StartSpanOption) tracing.Span {
	o := tracing.ApplyStartSpanOptions(opts...)

	parent := context.Background()
	var startOpts []trace.SpanStartOption
	if osc, ok := o.ChildOf.(SpanContext); ok && osc.sc.IsValid() {
		parent = trace.ContextWithSpanContext(parent, osc.sc)
	} else {
		startOpts = append(startOpts, trace.WithNewRoot())
	}
	if o.Tags[tracing.TagSpanKind] == tracing.SpanKindRPCServer {
		startOpts = append(startOpts, trace.WithSpanKind(trace.SpanKindServer))
	}

	attrs := make([]attribute.KeyValue, 0, len(o.Tags))
	for k, v := range o.Tags {
		attrs = append(attrs, toAttribute(k, v))
	}
	startOpts = append(startOpts, trace.WithAttributes(attrs...))

	_, span := t.tracer.Start(parent, operation, startOpts...)
	return &Span{span: span}
}

type Span struct {
	span trace.Span
}

func (s *Span) SetTag(key string, value any) {
	s.span.SetAttributes(toAttribute(key, value))
	if key == tracing.TagError {
		s.span.SetStatus(codes.Error, fmt.Sprint(value))
	}
}

func (s *Span) Finish() {
	s.span.End()
}

func (s *Span) Context() tracing.SpanContext {
	return SpanContext{sc: s.span.SpanContext()}
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
