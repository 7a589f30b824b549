// Package tracingtest provides a recording Tracer for tests.
package tracingtest

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"

	"github.com/on-the-ground/effect_ive_tracing/effects/tracing"
)

// Header keys read by Extract and written by Inject.
const (
	HeaderTraceID = "mock-traceid"
	HeaderSpanID  = "mock-spanid"
)

type SpanContext struct {
	traceID string
	spanID  string
}

func NewSpanContext(traceID, spanID string) SpanContext {
	return SpanContext{traceID: traceID, spanID: spanID}
}

func (sc SpanContext) TraceID() string { return sc.traceID }
func (sc SpanContext) SpanID() string  { return sc.spanID }

// Headers builds the inbound carrier of a caller holding sc.
func (sc SpanContext) Headers() tracing.Carrier {
	return tracing.Carrier{HeaderTraceID: sc.traceID, HeaderSpanID: sc.spanID}
}

// Tracer records every span it starts.
type Tracer struct {
	mu    sync.Mutex
	clock clockz.Clock
	spans []*Span
}

var _ tracing.Tracer = (*Tracer)(nil)

type Option func(*Tracer)

// WithClock timestamps spans with clock instead of the wall clock.
func WithClock(clock clockz.Clock) Option {
	return func(t *Tracer) {
		t.clock = clock
	}
}

func New(opts ...Option) *Tracer {
	t := &Tracer{clock: clockz.RealClock}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Extract fails with tracing.ErrSpanContextNotFound when carrier has neither header.
// A trace id without a span id yields a context with an empty SpanID.
func (t *Tracer) Extract(carrier tracing.Carrier) (tracing.SpanContext, error) {
	traceID, spanID := carrier.Get(HeaderTraceID), carrier.Get(HeaderSpanID)
	if traceID == "" && spanID == "" {
		return nil, tracing.ErrSpanContextNotFound
	}
	return SpanContext{traceID: traceID, spanID: spanID}, nil
}

func (t *Tracer) Inject(sc tracing.SpanContext, carrier tracing.Carrier) error {
	carrier.Set(HeaderTraceID, sc.TraceID())
	carrier.Set(HeaderSpanID, sc.SpanID())
	return nil
}

func (t *Tracer) StartSpan(operation string, opts ...tracing.StartSpanOption) tracing.Span {
	o := tracing.ApplyStartSpanOptions(opts...)

	s := &Span{
		operation: operation,
		clock:     t.clock,
		start:     t.clock.Now(),
		tags:      map[string]any{},
	}
	for k, v := range o.Tags {
		s.tags[k] = v
	}
	if o.ChildOf != nil {
		s.parent = o.ChildOf
		s.ctx = SpanContext{traceID: o.ChildOf.TraceID(), spanID: uuid.NewString()}
	} else {
		s.ctx = SpanContext{traceID: uuid.NewString(), spanID: uuid.NewString()}
	}

	t.mu.Lock()
	t.spans = append(t.spans, s)
	t.mu.Unlock()
	return s
}

// Spans lists the started spans in start order.
func (t *Tracer) Spans() []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.spans)
}

// Span returns the first span started for operation.
func (t *Tracer) Span(operation string) (*Span, bool) {
	for _, s := range t.Spans() {
		if s.operation == operation {
			return s, true
		}
	}
	return nil, false
}

func (t *Tracer) Reset() {
	t.mu.Lock()
	t.spans = nil
	t.mu.Unlock()
}

// Span records its tags, parent and every Finish call.
type Span struct {
	mu          sync.Mutex
	clock       clockz.Clock
	operation   string
	ctx         SpanContext
	parent      tracing.SpanContext
	tags        map[string]any
	start       time.Time
	end         time.Time
	finishCount int
	misuse      int
}

func (s *Span) SetTag(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishCount > 0 {
		s.misuse++
	}
	s.tags[key] = value
}

func (s *Span) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishCount == 0 {
		s.end = s.clock.Now()
	}
	s.finishCount++
}

func (s *Span) Context() tracing.SpanContext {
	return s.ctx
}

func (s *Span) Operation() string {
	return s.operation
}

// Parent is nil for root spans.
func (s *Span) Parent() tracing.SpanContext {
	return s.parent
}

// ParentID is the span id of the parent, empty for root spans.
func (s *Span) ParentID() string {
	if s.parent == nil {
		return ""
	}
	return s.parent.SpanID()
}

// Tags returns a copy of the tags set so far.
func (s *Span) Tags() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.tags))
	for k, v := range s.tags {
		out[k] = v
	}
	return out
}

func (s *Span) Tag(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.tags[key]
	return v, ok
}

func (s *Span) FinishCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishCount
}

// UsedAfterFinish counts tags set on the span after it finished.
func (s *Span) UsedAfterFinish() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.misuse
}

// Duration is zero until the span finished.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishCount == 0 {
		return 0
	}
	return s.end.Sub(s.start)
}
