// Package metrics holds the Prometheus instruments of the scanner. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every instrument registered by the service.
type Metrics struct {
	registry *prometheus.Registry

	Ticks         *prometheus.CounterVec
	TickDuration  prometheus.Histogram
	CycleFailures *prometheus.CounterVec
	Opportunities prometheus.Counter
	BestReturn    prometheus.Gauge
	Alerts        *prometheus.CounterVec
	QuotedSymbols prometheus.Gauge
	SinkFailures  *prometheus.CounterVec
}

// New creates the instruments and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cyclescan_ticks_total",
				Help: "Scan ticks by outcome (completed, skipped)",
			},
			[]string{"outcome"},
		),
		TickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cyclescan_tick_duration_seconds",
				Help:    "Time spent evaluating the whole catalog in one tick",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		CycleFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cyclescan_cycle_failures_total",
				Help: "Cycles left out of a tick by reason",
			},
			[]string{"reason"},
		),
		Opportunities: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cyclescan_opportunities_total",
				Help: "Results above the alert threshold",
			},
		),
		BestReturn: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cyclescan_best_return_percent",
				Help: "Highest percent return among the cycles valued in the last tick",
			},
		),
		Alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cyclescan_alerts_total",
				Help: "Alert dispatch outcomes (sent, suppressed, dropped, failed)",
			},
			[]string{"outcome"},
		),
		QuotedSymbols: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cyclescan_quoted_symbols",
				Help: "Symbols with a quote in the last snapshot",
			},
		),
		SinkFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cyclescan_sink_failures_total",
				Help: "Failed hand-offs to result sinks",
			},
			[]string{"sink"},
		),
	}
	m.registry.MustRegister(
		m.Ticks, m.TickDuration, m.CycleFailures, m.Opportunities,
		m.BestReturn, m.Alerts, m.QuotedSymbols, m.SinkFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) TickCompleted(d time.Duration, quoted int) {
	if m == nil {
		return
	}
	m.Ticks.WithLabelValues("completed").Inc()
	m.TickDuration.Observe(d.Seconds())
	m.QuotedSymbols.Set(float64(quoted))
}

func (m *Metrics) TickSkipped() {
	if m == nil {
		return
	}
	m.Ticks.WithLabelValues("skipped").Inc()
}

func (m *Metrics) CycleFailed(reason string) {
	if m == nil {
		return
	}
	m.CycleFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) OpportunitiesFound(n int, best float64) {
	if m == nil {
		return
	}
	m.Opportunities.Add(float64(n))
	m.BestReturn.Set(best)
}

func (m *Metrics) Alert(outcome string) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SinkFailed(sink string) {
	if m == nil {
		return
	}
	m.SinkFailures.WithLabelValues(sink).Inc()
}
