// Package metrics records per-run pipeline counters for the node exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hotprices/internal/normalizer"
)

const namespace = "hotprices"

// Recorder holds the pipeline metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	items         *prometheus.CounterVec
	uncategorised *prometheus.CounterVec
	duplicates    *prometheus.CounterVec
	failures      *prometheus.CounterVec
	skipped       *prometheus.CounterVec

	priorUnmatched prometheus.Gauge
	runDuration    prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

// NewRecorder creates a recorder with all metrics registered.
func NewRecorder() *Recorder {
	storeCounter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"store"})
	}

	r := &Recorder{
		registry:      prometheus.NewRegistry(),
		items:         storeCounter("items_total", "Canonical items kept after deduplication."),
		uncategorised: storeCounter("uncategorised_total", "Canonical items without a resolved category."),
		duplicates:    storeCounter("duplicates_total", "Items dropped as duplicate (store, id) identities."),
		failures:      storeCounter("canonical_failures_total", "Raw records the store adapter could not convert."),
		skipped:       storeCounter("skipped_total", "Raw records without a canonical form."),
		priorUnmatched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "prior_unmatched",
			Help:      "Items of the previous snapshot missing from the latest run.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last pipeline run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful pipeline run.",
		}),
	}

	r.registry.MustRegister(
		r.items, r.uncategorised, r.duplicates, r.failures, r.skipped,
		r.priorUnmatched, r.runDuration, r.lastSuccess,
	)

	return r
}

// ObserveStore adds one store's counts.
func (r *Recorder) ObserveStore(stats normalizer.StoreStats) {
	r.items.WithLabelValues(stats.Store).Add(float64(stats.Items))
	r.uncategorised.WithLabelValues(stats.Store).Add(float64(stats.Uncategorised))
	r.duplicates.WithLabelValues(stats.Store).Add(float64(stats.Duplicates))
	r.failures.WithLabelValues(stats.Store).Add(float64(stats.Failed))
	r.skipped.WithLabelValues(stats.Store).Add(float64(stats.Skipped))
}

// ObserveRun records the outcome of a successful run.
func (r *Recorder) ObserveRun(unmatched int, duration time.Duration, finished time.Time) {
	r.priorUnmatched.Set(float64(unmatched))
	r.runDuration.Set(duration.Seconds())
	r.lastSuccess.Set(float64(finished.Unix()))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}

	return nil
}
