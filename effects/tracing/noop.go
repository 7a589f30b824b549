package tracing

// NoopTracer extracts empty contexts and starts spans that record nothing.
type NoopTracer struct{}

var _ Tracer = NoopTracer{}

func (NoopTracer) Extract(Carrier) (SpanContext, error) {
	return noopSpanContext{}, nil
}

func (NoopTracer) Inject(SpanContext, Carrier) error {
	return nil
}

func (NoopTracer) StartSpan(string, ...StartSpanOption) Span {
	return noopSpan{}
}

type noopSpanContext struct{}

func (noopSpanContext) TraceID() string { return "" }
func (noopSpanContext) SpanID() string  { return "" }

type noopSpan struct{}

func (noopSpan) SetTag(string, any)   {}
func (noopSpan) Finish()              {}
func (noopSpan) Context() SpanContext { return noopSpanContext{} }
