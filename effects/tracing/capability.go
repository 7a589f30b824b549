package tracing

import (
	"github.com/on-the-ground/effect_ive_tracing/effects"
	"github.com/on-the-ground/effect_ive_tracing/effects/env"
)

const (
	// KeyModule holds the Module.
	KeyModule env.Key = "tracer"
	// KeyFactory holds the TracerFactory.
	KeyFactory env.Key = "tracer.factory"
	// KeyTracerContext holds the TracerContext installed by WithTracer.
	KeyTracerContext env.Key = "tracer.context"
	// KeySpanContext holds the ActiveSpan of the innermost span wrapper.
	KeySpanContext env.Key = "span.context"
)

// TracerFactory lazily builds the tracer. Factory runs once per WithTracer invocation.
type TracerFactory struct {
	Factory effects.Effect[Tracer]
}

func (f TracerFactory) Env() env.Env {
	return env.Of(KeyFactory, f)
}

// FactoryOf is a factory handing out an already built tracer.
func FactoryOf(t Tracer) TracerFactory {
	return TracerFactory{Factory: effects.Succeed(t)}
}

// DummyTracerFactory builds a NoopTracer.
var DummyTracerFactory = TracerFactory{
	Factory: effects.Lift(func() Tracer { return NoopTracer{} }),
}

// TracerContext is the tracer instance visible to span wrappers.
type TracerContext struct {
	TracerInstance Tracer
}

func (tc TracerContext) Env() env.Env {
	return env.Of(KeyTracerContext, tc)
}

// ActiveSpan is the span a wrapped effect runs under.
type ActiveSpan struct {
	SpanInstance Span
	Component    string
}

func (as ActiveSpan) Env() env.Env {
	return env.Of(KeySpanContext, as)
}

// ChildContext is present when both a tracer and an active span are in scope.
type ChildContext struct {
	Tracer Tracer
	Span   ActiveSpan
}

// LookupChildContext reports whether e carries a well-typed tracer and active span.
func LookupChildContext(e env.Env) (ChildContext, bool) {
	tc, ok := env.Get[TracerContext](e, KeyTracerContext)
	if !ok || tc.TracerInstance == nil {
		return ChildContext{}, false
	}
	as, ok := env.Get[ActiveSpan](e, KeySpanContext)
	if !ok || as.SpanInstance == nil {
		return ChildContext{}, false
	}
	return ChildContext{Tracer: tc.TracerInstance, Span: as}, true
}

// HasTracerContext reports whether WithTracer installed a tracer in e.
func HasTracerContext(e env.Env) bool {
	tc, ok := env.Get[TracerContext](e, KeyTracerContext)
	return ok && tc.TracerInstance != nil
}
