// Package metrics exposes span and shutdown counters as an optional capability.
//
// When a *Metrics is provided under Key, the tracing and graceful packages
// count what they do; without it they stay silent.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/on-the-ground/effect_ive_tracing/effects/env"
)

// Key is the capability key of *Metrics.
const Key env.Key = "metrics"

const (
	namespace = "effective"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors registered by New.
type Metrics struct {
	spansStarted  *prometheus.CounterVec
	spansFinished *prometheus.CounterVec
	hooksRun      prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		spansStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracing",
			Name:      "spans_started_total",
			Help:      "Spans started, by component and kind (controller or child).",
		}, []string{"component", "kind"}),
		spansFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracing",
			Name:      "spans_finished_total",
			Help:      "Spans finished, by component and outcome.",
		}, []string{"component", "outcome"}),
		hooksRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graceful",
			Name:      "shutdown_hooks_total",
			Help:      "Shutdown hooks run to completion.",
		}),
	}

	for _, c := range []prometheus.Collector{m.spansStarted, m.spansFinished, m.hooksRun} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Env installs m under Key.
func (m *Metrics) Env() env.Env {
	return env.Of(Key, m)
}

func (m *Metrics) SpanStarted(component, kind string) {
	m.spansStarted.WithLabelValues(component, kind).Inc()
}

func (m *Metrics) SpanFinished(component string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.spansFinished.WithLabelValues(component, outcome).Inc()
}

func (m *Metrics) HookRun() {
	m.hooksRun.Inc()
}

// FromContext returns the *Metrics visible in ctx, if any.
func FromContext(ctx context.Context) (*Metrics, bool) {
	return env.Get[*Metrics](env.FromContext(ctx), Key)
}
