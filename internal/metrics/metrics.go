// Package metrics exposes refresh and availability statistics to
// Prometheus on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courtavail/internal/model"
)

const namespace = "courtavail"

// Refresh outcomes used as the "result" label.
const (
	ResultOK         = "ok"
	ResultFetchError = "fetch_error"
	ResultSaveError  = "save_error"
)

// Metrics holds every collector. The zero value is not usable; use New.
type Metrics struct {
	registry *prometheus.Registry

	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	recordsParsed   prometheus.Gauge
	diagnostics     *prometheus.CounterVec
	freeMinutes     *prometheus.GaugeVec
	lastRefresh     prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Availability refresh runs by result.",
		}, []string{"result"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of availability refresh runs.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		recordsParsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_parsed",
			Help:      "Event records parsed in the last refresh.",
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostics emitted by refresh runs, by kind.",
		}, []string{"kind"}),
		freeMinutes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "free_minutes",
			Help:      "Free minutes of the resource per reported date.",
		}, []string{"date"}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
	}

	reg.MustRegister(
		m.refreshTotal,
		m.refreshDuration,
		m.recordsParsed,
		m.diagnostics,
		m.freeMinutes,
		m.lastRefresh,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRefresh records one refresh run.
func (m *Metrics) ObserveRefresh(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(result).Inc()
	m.refreshDuration.Observe(took.Seconds())
}

// ObserveReport records the outcome of a published report. Per-date gauges
// are reset so dates that left the horizon disappear.
func (m *Metrics) ObserveReport(rep model.Report, records int, at time.Time) {
	if m == nil {
		return
	}
	m.recordsParsed.Set(float64(records))
	m.lastRefresh.Set(float64(at.Unix()))

	for _, d := range rep.Diagnostics {
		m.diagnostics.WithLabelValues(string(d.Kind)).Inc()
	}

	m.freeMinutes.Reset()
	for date, slots := range rep.Availability {
		m.freeMinutes.WithLabelValues(date).Set(slotMinutes(slots))
	}
}

// slotMinutes sums "HH:MM-HH:MM" slots. Malformed slots count as zero.
func slotMinutes(slots []string) float64 {
	var total time.Duration
	for _, s := range slots {
		if len(s) != len("15:04-15:04") {
			continue
		}
		start, err1 := time.Parse("15:04", s[:5])
		end, err2 := time.Parse("15:04", s[6:])
		if err1 != nil || err2 != nil || end.Before(start) {
			continue
		}
		total += end.Sub(start)
	}
	return total.Minutes()
}
