// Package metrics exposes Prometheus instrumentation for estimation runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vsinha/restock/pkg/domain/entities"
)

// Metrics groups the collectors used by the orchestrator and scheduler.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	estimatesTotal   *prometheus.CounterVec
	pairFailures     prometheus.Counter
	dataQualityDrops prometheus.Counter
	profileCacheHits prometheus.Counter
	profileCacheMiss prometheus.Counter
	transitionsTotal *prometheus.CounterVec
	batchDuration    prometheus.Histogram
	batchPairs       prometheus.Gauge
	batchLastSuccess prometheus.Gauge
	batchFailures    prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		estimatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "restock_estimates_total",
			Help: "Estimates computed, by resulting status.",
		}, []string{"status"}),
		pairFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "restock_pair_failures_total",
			Help: "Per-pair ledger reads that failed during a batch.",
		}),
		dataQualityDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "restock_data_quality_discards_total",
			Help: "Acquisition events discarded for non-positive quantity or missing timestamp.",
		}),
		profileCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "restock_profile_cache_hits_total",
			Help: "Single-pair estimates served from a cached cycle profile.",
		}),
		profileCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "restock_profile_cache_misses_total",
			Help: "Single-pair estimates that rebuilt the cycle profile.",
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "restock_reorder_transitions_total",
			Help: "Status transitions into a reorder status, by target status.",
		}, []string{"to"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "restock_batch_duration_seconds",
			Help:    "Duration of full recompute runs.",
			Buckets: prometheus.DefBuckets,
		}),
		batchPairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "restock_batch_pairs",
			Help: "Pairs processed by the most recent recompute run.",
		}),
		batchLastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "restock_batch_last_success_timestamp_seconds",
			Help: "Unix time of the last recompute run that completed.",
		}),
		batchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "restock_batch_failures_total",
			Help: "Recompute runs aborted because the ledger was unavailable.",
		}),
	}

	m.registry.MustRegister(
		m.estimatesTotal,
		m.pairFailures,
		m.dataQualityDrops,
		m.profileCacheHits,
		m.profileCacheMiss,
		m.transitionsTotal,
		m.batchDuration,
		m.batchPairs,
		m.batchLastSuccess,
		m.batchFailures,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveEstimate(status entities.StockStatus) {
	if m == nil {
		return
	}
	m.estimatesTotal.WithLabelValues(status.String()).Inc()
}

func (m *Metrics) IncPairFailure() {
	if m == nil {
		return
	}
	m.pairFailures.Inc()
}

func (m *Metrics) AddDataQualityDiscards(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dataQualityDrops.Add(float64(n))
}

func (m *Metrics) ObserveProfileCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.profileCacheHits.Inc()
		return
	}
	m.profileCacheMiss.Inc()
}

func (m *Metrics) IncTransition(to entities.StockStatus) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to.String()).Inc()
}

// ObserveBatch records a completed recompute run.
func (m *Metrics) ObserveBatch(pairs int, took time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(took.Seconds())
	m.batchPairs.Set(float64(pairs))
	m.batchLastSuccess.Set(float64(finishedAt.Unix()))
}

func (m *Metrics) IncBatchFailure() {
	if m == nil {
		return
	}
	m.batchFailures.Inc()
}
