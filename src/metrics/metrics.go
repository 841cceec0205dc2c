package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "posbot"

// Tick outcomes.
const (
	TickOK         = "ok"
	TickSkipped    = "skipped"
	TickFetchError = "fetch_error"
	TickNotifyErr  = "notify_error"
)

// Metrics instruments the watcher loop. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Ticks            *prometheus.CounterVec
	TickDuration     prometheus.Histogram
	Crossings        *prometheus.CounterVec
	Alerts           *prometheus.CounterVec
	AlertsSuppressed prometheus.Counter
	TrackedPositions prometheus.Gauge
	Evicted          prometheus.Counter
	LastPollSeconds  prometheus.Gauge
}

// New registers the collectors on reg. Passing prometheus.DefaultRegisterer exposes them on /metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Ticks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "watcher",
				Name:      "ticks_total",
				Help:      "Number of poll ticks by outcome",
			},
			[]string{"outcome"},
		),
		TickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "watcher",
				Name:      "tick_duration_seconds",
				Help:      "Time spent in one poll tick",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),
		Crossings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "watcher",
				Name:      "crossings_total",
				Help:      "Detected threshold crossings by direction",
			},
			[]string{"direction"},
		),
		Alerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "watcher",
				Name:      "alerts_total",
				Help:      "Delivered crossing notifications by direction",
			},
			[]string{"direction"},
		),
		AlertsSuppressed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "watcher",
				Name:      "alerts_suppressed_total",
				Help:      "Crossings not notified because the cooldown window was open",
			},
		),
		TrackedPositions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "watcher",
				Name:      "tracked_positions",
				Help:      "Number of position keys held in state",
			},
		),
		Evicted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "watcher",
				Name:      "evicted_positions_total",
				Help:      "Position keys dropped after not being seen for too long",
			},
		),
		LastPollSeconds: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "watcher",
				Name:      "last_poll_timestamp_seconds",
				Help:      "Epoch seconds of the last completed poll",
			},
		),
	}
}

func (m *Metrics) ObserveTick(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Ticks.WithLabelValues(outcome).Inc()
	if outcome != TickSkipped {
		m.TickDuration.Observe(seconds)
	}
}

func (m *Metrics) Crossing(direction string) {
	if m == nil {
		return
	}
	m.Crossings.WithLabelValues(direction).Inc()
}

func (m *Metrics) Alert(direction string) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(direction).Inc()
}

func (m *Metrics) Suppressed() {
	if m == nil {
		return
	}
	m.AlertsSuppressed.Inc()
}

func (m *Metrics) SetTracked(n int, lastPoll float64) {
	if m == nil {
		return
	}
	m.TrackedPositions.Set(float64(n))
	m.LastPollSeconds.Set(lastPoll)
}

func (m *Metrics) AddEvicted(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Evicted.Add(float64(n))
}
