// Package metrics exposes engine activity as Prometheus collectors fed by lifecycle hooks.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/detent/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "detent"

// Collector records transitions, failures, events and telemetry drops.
type Collector struct {
	transitions *prometheus.CounterVec
	events      *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	drops       *prometheus.CounterVec

	mu      sync.Mutex
	started map[string]time.Time // sheet ID -> start of the current motion
}

// New creates the collectors and registers them with reg.
// When live is non-nil it backs a gauge of live sheets.
func New(reg prometheus.Registerer, live func() int) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Committed sheet state changes.",
			},
			[]string{"op", "to"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Lifecycle events emitted by the engine.",
			},
			[]string{"type"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operation_failures_total",
				Help:      "Rejected sheet operations.",
			},
			[]string{"op"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transition_duration_seconds",
				Help:      "Time from leaving a resting state to settling again.",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"to"},
		),
		drops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telemetry_dropped_total",
				Help:      "Position samples discarded under backpressure.",
			},
			[]string{"sheet_id"},
		),
		started: make(map[string]time.Time),
	}

	reg.MustRegister(c.transitions, c.events, c.failures, c.duration, c.drops)
	if live != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_sheets",
				Help:      "Sheets presented or mid-transition.",
			},
			func() float64 { return float64(live()) },
		))
	}
	return c
}

// Hooks returns lifecycle hooks that feed the collectors.
func (c *Collector) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnEvent: func(_ context.Context, ev *domain.Event) {
			c.events.WithLabelValues(string(ev.Type)).Inc()
		},
		OnStateChange: func(_ context.Context, ch *domain.StateChange) {
			c.transitions.WithLabelValues(ch.Op, string(ch.To.Kind)).Inc()
			c.observe(ch)
		},
		OnFailure: func(_ context.Context, err *domain.OperationError) {
			c.failures.WithLabelValues(err.Op).Inc()
		},
	}
}

// OnDrop counts a discarded telemetry sample.
func (c *Collector) OnDrop(sheetID string) {
	c.drops.WithLabelValues(sheetID).Inc()
}

func (c *Collector) observe(ch *domain.StateChange) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch.To.InMotion() {
		if _, ok := c.started[ch.SheetID]; !ok {
			c.started[ch.SheetID] = time.Now()
		}
		return
	}
	if start, ok := c.started[ch.SheetID]; ok {
		delete(c.started, ch.SheetID)
		c.duration.WithLabelValues(string(ch.To.Kind)).Observe(time.Since(start).Seconds())
	}
}
