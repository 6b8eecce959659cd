package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eugenenazirov/freight-binpacker/internal/packer"
)

const namespace = "binpacker"

// Outcome labels for packing runs.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// PackMetrics records packing runs.
type PackMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	items    prometheus.Counter
	bins     prometheus.Histogram
	flagged  *prometheus.CounterVec
}

// NewPackMetrics registers the packing metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPackMetrics(reg prometheus.Registerer) *PackMetrics {
	if reg == nil {
		return &PackMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Packing runs by source and outcome.",
	}, []string{"source", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of packing runs in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"source"})
	items := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_packed_total",
		Help:      "Bundles assigned to bins.",
	})
	bins := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "bins_per_run",
		Help:      "Bins produced by a single packing run.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
	flagged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flagged_bins_total",
		Help:      "Bins flagged below the minimum weight or over the maximum weight.",
	}, []string{"flag"})
	reg.MustRegister(runs, duration, items, bins, flagged)
	return &PackMetrics{
		runs:     runs,
		duration: duration,
		items:    items,
		bins:     bins,
		flagged:  flagged,
	}
}

// ObserveSuccess records a completed run and the shape of its result.
func (m *PackMetrics) ObserveSuccess(source string, elapsed time.Duration, result packer.Result) {
	if m == nil || m.runs == nil {
		return
	}
	source = normalizeLabel(source)
	m.runs.WithLabelValues(source, OutcomeSuccess).Inc()
	m.duration.WithLabelValues(source).Observe(elapsed.Seconds())
	m.items.Add(float64(len(result.Assignments)))
	m.bins.Observe(float64(result.BinCount()))
	m.flagged.WithLabelValues("below_min").Add(float64(result.BelowMinCount()))
	m.flagged.WithLabelValues("overweight").Add(float64(result.OverweightCount()))
}

// IncFailure counts a run that could not produce a result.
func (m *PackMetrics) IncFailure(source string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(normalizeLabel(source), OutcomeFailure).Inc()
}

func normalizeLabel(source string) string {
	if source == "" {
		return "unknown"
	}
	return source
}
