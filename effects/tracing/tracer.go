package tracing

import (
	"errors"
	"maps"
	"net/http"
	"slices"
	"strings"
)

// Standard tag keys and values.
const (
	TagSpanKind  = "span.kind"
	TagComponent = "component"
	TagError     = "error"

	SpanKindRPCServer = "server"
)

// ErrSpanContextNotFound is returned by Extract when the carrier holds no trace context.
var ErrSpanContextNotFound = errors.New("span context not found in carrier")

// SpanContext identifies a span across process boundaries.
type SpanContext interface {
	TraceID() string
	// SpanID is empty when the context does not identify a span.
	SpanID() string
}

// Span is one timed operation of a trace. A finished span must not be tagged again.
type Span interface {
	SetTag(key string, value any)
	Finish()
	Context() SpanContext
}

// Tracer is the backend capability: it reads and writes trace context in
// header carriers and starts spans.
type Tracer interface {
	Extract(carrier Carrier) (SpanContext, error)
	Inject(sc SpanContext, carrier Carrier) error
	StartSpan(operation string, opts ...StartSpanOption) Span
}

// Carrier is a header map with lowercase keys.
type Carrier map[string]string

func (c Carrier) Get(key string) string {
	return c[strings.ToLower(key)]
}

func (c Carrier) Set(key, value string) {
	c[strings.ToLower(key)] = value
}

func (c Carrier) Keys() []string {
	return slices.Sorted(maps.Keys(c))
}

// HeadersFromHTTP flattens h into a Carrier, keeping the first value of each header.
func HeadersFromHTTP(h http.Header) Carrier {
	c := make(Carrier, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			c.Set(k, vs[0])
		}
	}
	return c
}

// WriteHTTP copies c into h.
func (c Carrier) WriteHTTP(h http.Header) {
	for k, v := range c {
		h.Set(k, v)
	}
}

// StartSpanOptions are the resolved options of a StartSpan call.
type StartSpanOptions struct {
	// ChildOf is nil for root spans.
	ChildOf SpanContext
	Tags    map[string]any
}

type StartSpanOption func(*StartSpanOptions)

func ChildOf(parent SpanContext) StartSpanOption {
	return func(o *StartSpanOptions) {
		o.ChildOf = parent
	}
}

func WithTag(key string, value any) StartSpanOption {
	return func(o *StartSpanOptions) {
		if o.Tags == nil {
			o.Tags = map[string]any{}
		}
		o.Tags[key] = value
	}
}

// ApplyStartSpanOptions resolves opts, for Tracer implementations.
func ApplyStartSpanOptions(opts ...StartSpanOption) StartSpanOptions {
	var o StartSpanOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
