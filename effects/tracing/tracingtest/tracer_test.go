package tracingtest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"

	"github.com/on-the-ground/effect_ive_tracing/effects/tracing"
	"github.com/on-the-ground/effect_ive_tracing/effects/tracing/tracingtest"
)

func TestTracer_ExtractMissingHeaders(t *testing.T) {
	tr := tracingtest.New()

	_, err := tr.Extract(tracing.Carrier{})
	assert.ErrorIs(t, err, tracing.ErrSpanContextNotFound)

	sc, err := tr.Extract(tracing.Carrier{tracingtest.HeaderTraceID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "t1", sc.TraceID())
	assert.Empty(t, sc.SpanID())
}

func TestTracer_InjectRoundTrip(t *testing.T) {
	tr := tracingtest.New()
	span := tr.StartSpan("op")

	carrier := tracing.Carrier{}
	require.NoError(t, tr.Inject(span.Context(), carrier))

	sc, err := tr.Extract(carrier)
	require.NoError(t, err)
	assert.Equal(t, span.Context().TraceID(), sc.TraceID())
	assert.Equal(t, span.Context().SpanID(), sc.SpanID())
}

func TestTracer_ChildSharesTrace(t *testing.T) {
	tr := tracingtest.New()
	root := tr.StartSpan("root", tracing.WithTag("k", "v"))
	child := tr.StartSpan("child", tracing.ChildOf(root.Context()))

	assert.Equal(t, root.Context().TraceID(), child.Context().TraceID())
	assert.NotEqual(t, root.Context().SpanID(), child.Context().SpanID())

	recorded, ok := tr.Span("child")
	require.True(t, ok)
	assert.Equal(t, root.Context().SpanID(), recorded.ParentID())

	recordedRoot, _ := tr.Span("root")
	assert.Empty(t, recordedRoot.ParentID())
	assert.Equal(t, map[string]any{"k": "v"}, recordedRoot.Tags())
	assert.Len(t, tr.Spans(), 2)
}

func TestSpan_RecordsMisuseAndDuration(t *testing.T) {
	clock := clockz.NewFakeClock()
	tr := tracingtest.New(tracingtest.WithClock(clock))

	span := tr.StartSpan("op").(*tracingtest.Span)
	assert.Zero(t, span.Duration())

	clock.Advance(250 * time.Millisecond)
	span.Finish()
	span.Finish()
	span.SetTag("late", true)

	assert.Equal(t, 2, span.FinishCount())
	assert.Equal(t, 1, span.UsedAfterFinish())
	assert.Equal(t, 250*time.Millisecond, span.Duration())
}
