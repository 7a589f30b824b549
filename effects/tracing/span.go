package tracing

import (
	"context"
	"reflect"

	"github.com/on-the-ground/effect_ive_tracing/effects"
	"github.com/on-the-ground/effect_ive_tracing/effects/env"
	"github.com/on-the-ground/effect_ive_tracing/effects/log"
	"github.com/on-the-ground/effect_ive_tracing/effects/metrics"
)

const (
	kindController = "controller"
	kindChild      = "child"
)

// CreateControllerSpan starts the span of an inbound request.
//
// The span continues the caller's trace when headers yield a context with a
// non-empty span id, and is a new root otherwise. Tracers that return an empty
// context or a typed nil instead of an error on a miss start a root span too.
func CreateControllerSpan(tracer Tracer, component, operation string, headers Carrier) Span {
	opts := []StartSpanOption{
		WithTag(TagSpanKind, SpanKindRPCServer),
		WithTag(TagComponent, component),
	}
	parent, err := tracer.Extract(headers)
	if err == nil && !isNil(parent) && parent.SpanID() != "" {
		opts = append(opts, ChildOf(parent))
	}
	return tracer.StartSpan(operation, opts...)
}

// isNil also catches a nil pointer stored in a non-nil SpanContext.
func isNil(sc SpanContext) bool {
	if sc == nil {
		return true
	}
	v := reflect.ValueOf(sc)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

// runWithSpan runs eff with span active and finishes span once eff settled.
func runWithSpan[A any](
	ctx context.Context,
	eff effects.Effect[A],
	span Span,
	component, kind string,
) (A, error) {
	m, measured := metrics.FromContext(ctx)
	if measured {
		m.SpanStarted(component, kind)
	}
	log.LogEff(ctx, log.LogDebug, "span started", map[string]interface{}{
		log.FieldComponent: component,
		"kind":             kind,
		"trace_id":         span.Context().TraceID(),
	})

	scoped := env.Provide(ActiveSpan{SpanInstance: span, Component: component}.Env(), eff)
	return effects.Ensuring(scoped, func(ctx context.Context, err error) {
		if err != nil {
			span.SetTag(TagError, err.Error())
		}
		span.Finish()

		if measured {
			m.SpanFinished(component, err)
		}
		fields := map[string]interface{}{
			log.FieldComponent: component,
			"kind":             kind,
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		log.LogEff(ctx, log.LogDebug, "span finished", fields)
	})(ctx)
}
