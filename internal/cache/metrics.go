package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks cache behaviour.
//
// Metrics:
//   - <namespace>_query_cache_hits_total: reads answered from the cache
//   - <namespace>_query_cache_misses_total: reads sent to the backend
//   - <namespace>_query_cache_invalidations_total: whole-cache clears after writes
//   - <namespace>_query_cache_entries: entries currently stored
//
// A nil *Metrics records nothing.
type Metrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	invalidations prometheus.Counter
	entries       prometheus.Gauge
}

// NewMetrics creates the cache collectors and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      "hits_total",
			Help:      "Total number of reads answered from the cache",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      "misses_total",
			Help:      "Total number of reads sent to the backend",
		}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      "invalidations_total",
			Help:      "Total number of cache clears caused by writes",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      "entries",
			Help:      "Current number of entries in the cache",
		}),
	}

	reg.MustRegister(m.hits, m.misses, m.invalidations, m.entries)
	return m
}

func (m *Metrics) recordHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) recordMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) recordInvalidation() {
	if m != nil {
		m.invalidations.Inc()
	}
}

func (m *Metrics) setEntries(n int) {
	if m != nil {
		m.entries.Set(float64(n))
	}
}
