package tracing

import (
	"context"

	"github.com/on-the-ground/effect_ive_tracing/effects"
	"github.com/on-the-ground/effect_ive_tracing/effects/env"
)

// Module decides how span wrappers start their spans. It is itself a
// capability, installed under KeyModule; DefaultModule is used when the
// environment carries none.
type Module interface {
	ControllerSpan(tracer Tracer, component, operation string, headers Carrier) Span
	ChildSpan(parent ChildContext, operation string) Span
}

type defaultModule struct{}

// DefaultModule starts controller spans with CreateControllerSpan and child
// spans as children of the active span on the same tracer.
var DefaultModule Module = defaultModule{}

func (defaultModule) ControllerSpan(tracer Tracer, component, operation string, headers Carrier) Span {
	return CreateControllerSpan(tracer, component, operation, headers)
}

func (defaultModule) ChildSpan(parent ChildContext, operation string) Span {
	return parent.Tracer.StartSpan(operation, ChildOf(parent.Span.SpanInstance.Context()))
}

// ModuleEnv installs m under KeyModule.
func ModuleEnv(m Module) env.Env {
	return env.Of(KeyModule, m)
}

func moduleOf(e env.Env) Module {
	if m, ok := env.Get[Module](e, KeyModule); ok {
		return m
	}
	return DefaultModule
}

// WithTracer runs the TracerFactory once and provides the tracer it built to eff.
// A factory failure fails the whole effect. It panics when no factory is installed.
func WithTracer[A any](eff effects.Effect[A]) effects.Effect[A] {
	return env.AccessM(func(e env.Env) effects.Effect[A] {
		factory := env.MustGet[TracerFactory](e, KeyFactory)
		return effects.Chain(factory.Factory, func(t Tracer) effects.Effect[A] {
			return env.Provide(TracerContext{TracerInstance: t}.Env(), eff)
		})
	})
}

// WithControllerSpan wraps an effect in the span of an inbound request.
// It must run under WithTracer and panics otherwise.
func WithControllerSpan[A any](component, operation string, headers Carrier) func(effects.Effect[A]) effects.Effect[A] {
	return func(eff effects.Effect[A]) effects.Effect[A] {
		return func(ctx context.Context) (A, error) {
			e := env.FromContext(ctx)
			tc := env.MustGet[TracerContext](e, KeyTracerContext)
			span := moduleOf(e).ControllerSpan(tc.TracerInstance, component, operation, headers)
			return runWithSpan(ctx, eff, span, component, kindController)
		}
	}
}

// WithChildSpan wraps an effect in a child of the active span, inheriting its
// component. Without an active span and tracer eff runs unchanged.
func WithChildSpan[A any](operation string) func(effects.Effect[A]) effects.Effect[A] {
	return func(eff effects.Effect[A]) effects.Effect[A] {
		return func(ctx context.Context) (A, error) {
			e := env.FromContext(ctx)
			parent, ok := LookupChildContext(e)
			if !ok {
				return eff(ctx)
			}
			span := moduleOf(e).ChildSpan(parent, operation)
			return runWithSpan(ctx, eff, span, parent.Span.Component, kindChild)
		}
	}
}

// NoTracing runs eff under a no-op tracer and a dummy controller span, for
// call sites that need the tracing capabilities without a configured backend.
func NoTracing[A any](eff effects.Effect[A]) effects.Effect[A] {
	return env.Provide(
		env.Merge(ModuleEnv(DefaultModule), DummyTracerFactory.Env()),
		WithTracer(WithControllerSpan[A]("no-tracing", "dummy-controller", nil)(eff)),
	)
}

// InjectHeaders returns the headers propagating the active span to a downstream
// call. The carrier is empty outside any span.
func InjectHeaders() effects.Effect[Carrier] {
	return func(ctx context.Context) (Carrier, error) {
		carrier := Carrier{}
		parent, ok := LookupChildContext(env.FromContext(ctx))
		if !ok {
			return carrier, nil
		}
		if err := parent.Tracer.Inject(parent.Span.SpanInstance.Context(), carrier); err != nil {
			return nil, err
		}
		return carrier, nil
	}
}
