// Package tracing wraps effects in distributed-tracing spans.
//
// A Tracer is produced by the TracerFactory capability and installed for the
// extent of an effect with WithTracer. WithControllerSpan starts the span of an
// inbound request, continuing the caller's trace when the headers carry one;
// WithChildSpan nests a span under the active one and is a passthrough when no
// span is active. Every span started here is finished exactly once, after the
// wrapped effect settled, and is tagged with the error message on failure.
//
//	program := tracing.WithTracer(
//		tracing.WithControllerSpan[string]("http", "GET /users", headers)(
//			tracing.WithChildSpan[string]("load-user")(loadUser),
//		),
//	)
//	user, err := env.Provide(tracing.FactoryOf(tracer).Env(), program)(ctx)
//
// Call sites that need the capabilities but have no backend configured can run
// under NoTracing.
package tracing
