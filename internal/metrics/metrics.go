// Package metrics defines the Prometheus instruments for valuation passes.
// All methods are safe on a nil *Metrics so callers can run uninstrumented.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portfolio"

// Metrics holds the instruments registered on one registry
type Metrics struct {
	Registry *prometheus.Registry

	FxProviderRequests *prometheus.CounterVec
	FxProviderDuration *prometheus.HistogramVec
	FxCacheLookups     *prometheus.CounterVec
	SourceFetches      *prometheus.CounterVec
	CoalescedFetches   *prometheus.CounterVec
	Passes             *prometheus.CounterVec
	PassDuration       prometheus.Histogram
	TotalValue         *prometheus.GaugeVec
}

// New registers all instruments on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		FxProviderRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fx_provider_requests_total",
				Help:      "FX provider calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		FxProviderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fx_provider_duration_seconds",
				Help:      "FX provider call latency",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"provider"},
		),
		FxCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fx_cache_lookups_total",
				Help:      "Pass-scoped FX cache lookups by result",
			},
			[]string{"result"},
		),
		SourceFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_fetches_total",
				Help:      "Holding source fetches by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		CoalescedFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_fetches_coalesced_total",
				Help:      "Fetches served from an in-flight request",
			},
			[]string{"source"},
		),
		Passes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "Valuation passes by terminal state",
			},
			[]string{"state", "incomplete"},
		),
		PassDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Valuation pass duration",
				Buckets:   prometheus.DefBuckets,
			},
		),
		TotalValue: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "total_value",
				Help:      "Total value of the last completed pass",
			},
			[]string{"currency"},
		),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveProvider records one FX provider call
func (m *Metrics) ObserveProvider(provider string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.FxProviderRequests.WithLabelValues(provider, outcome(err)).Inc()
	m.FxProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveCache records a pass-scoped cache hit or miss
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.FxCacheLookups.WithLabelValues(result).Inc()
}

// ObserveFetch records one holding source fetch
func (m *Metrics) ObserveFetch(source string, err error) {
	if m == nil {
		return
	}
	m.SourceFetches.WithLabelValues(source, outcome(err)).Inc()
}

// ObserveCoalesced records a fetch that reused an in-flight request
func (m *Metrics) ObserveCoalesced(source string) {
	if m == nil {
		return
	}
	m.CoalescedFetches.WithLabelValues(source).Inc()
}

// ObservePass records a finished pass
func (m *Metrics) ObservePass(state string, incomplete bool, d time.Duration) {
	if m == nil {
		return
	}
	inc := "false"
	if incomplete {
		inc = "true"
	}
	m.Passes.WithLabelValues(state, inc).Inc()
	m.PassDuration.Observe(d.Seconds())
}

// SetTotal publishes the latest total
func (m *Metrics) SetTotal(currency string, value float64) {
	if m == nil {
		return
	}
	m.TotalValue.WithLabelValues(currency).Set(value)
}
