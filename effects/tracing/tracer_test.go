package tracing_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/on-the-ground/effect_ive_tracing/effects/tracing"
	"github.com/on-the-ground/effect_ive_tracing/effects/tracing/tracingtest"
)

func TestHeadersFromHTTP_LowercasesKeys(t *testing.T) {
	h := http.Header{}
	h.Set("Mock-TraceID", "t")
	h.Add("X-Multi", "first")
	h.Add("X-Multi", "second")

	c := tracing.HeadersFromHTTP(h)
	assert.Equal(t, tracing.Carrier{"mock-traceid": "t", "x-multi": "first"}, c)
	assert.Equal(t, "t", c.Get("MOCK-TRACEID"))
	assert.Equal(t, []string{"mock-traceid", "x-multi"}, c.Keys())

	out := http.Header{}
	c.WriteHTTP(out)
	assert.Equal(t, "first", out.Get("X-Multi"))
}

func TestCreateControllerSpan_ExtractionErrorStartsRoot(t *testing.T) {
	tr := tracingtest.New()

	span := tracing.CreateControllerSpan(tr, "c", "op", nil)
	recorded, ok := tr.Span("op")
	require.True(t, ok)
	assert.Nil(t, recorded.Parent())
	assert.Same(t, recorded, span)
}

func TestNoopTracer(t *testing.T) {
	sc, err := tracing.NoopTracer{}.Extract(tracing.Carrier{"a": "b"})
	require.NoError(t, err)
	assert.Empty(t, sc.SpanID())

	span := tracing.CreateControllerSpan(tracing.NoopTracer{}, "c", "op", nil)
	span.SetTag("k", "v")
	span.Finish()
	assert.Empty(t, span.Context().TraceID())
}

type pointerSpanContext struct {
	spanID string
}

func (sc *pointerSpanContext) TraceID() string { return "trace" }
func (sc *pointerSpanContext) SpanID() string  { return sc.spanID }

// typedNilTracer returns a nil *pointerSpanContext and no error on a miss.
type typedNilTracer struct {
	tracing.NoopTracer
	hit     bool
	started []tracing.StartSpanOptions
}

func (tr *typedNilTracer) Extract(tracing.Carrier) (tracing.SpanContext, error) {
	var sc *pointerSpanContext
	if tr.hit {
		sc = &pointerSpanContext{spanID: "remote"}
	}
	return sc, nil
}

func (tr *typedNilTracer) StartSpan(op string, opts ...tracing.StartSpanOption) tracing.Span {
	tr.started = append(tr.started, tracing.ApplyStartSpanOptions(opts...))
	return tr.NoopTracer.StartSpan(op, opts...)
}

func TestCreateControllerSpan_TypedNilContextStartsRoot(t *testing.T) {
	tr := &typedNilTracer{}

	assert.NotPanics(t, func() {
		tracing.CreateControllerSpan(tr, "c", "op", tracing.Carrier{})
	})
	require.Len(t, tr.started, 1)
	assert.Nil(t, tr.started[0].ChildOf)

	tr.hit = true
	tracing.CreateControllerSpan(tr, "c", "op", tracing.Carrier{})
	require.Len(t, tr.started, 2)
	require.NotNil(t, tr.started[1].ChildOf)
	assert.Equal(t, "remote", tr.started[1].ChildOf.SpanID())
}
