package recommend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of a recommender Service.
//
// Metrics are created unregistered and registered on the registry passed to
// NewMetrics, so several services can coexist in one process or test.
type Metrics struct {
	Candidates         *prometheus.CounterVec
	Served             *prometheus.CounterVec
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	GenerationDuration prometheus.Histogram
	ScoringDuration    prometheus.Histogram
}

// NewMetrics creates the recommender metrics under namespace and registers
// them on reg. A nil reg leaves them unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_total",
				Help:      "Total number of generated candidates by origin",
			},
			[]string{"origin"},
		),
		Served: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recommendations_served_total",
				Help:      "Total number of served recommendations by selection policy",
			},
			[]string{"selection"},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of recommendation requests served from cache",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of recommendation requests that generated new items",
			},
		),
		GenerationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "candidate_generation_duration_seconds",
				Help:      "Candidate generation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ScoringDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scoring_duration_seconds",
				Help:      "Candidate scoring duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.Candidates,
			m.Served,
			m.CacheHits,
			m.CacheMisses,
			m.GenerationDuration,
			m.ScoringDuration,
		)
	}
	return m
}

// RecordCandidates counts candidates by origin.
func (m *Metrics) RecordCandidates(candidates []Recommendation) {
	for _, c := range candidates {
		m.Candidates.WithLabelValues(string(c.Origin)).Inc()
	}
}

// RecordServed counts served items for a selection policy.
func (m *Metrics) RecordServed(policy SelectionPolicy, n int) {
	m.Served.WithLabelValues(string(policy)).Add(float64(n))
}

// ObserveGeneration records the duration of a generation pass started at
// start.
func (m *Metrics) ObserveGeneration(start time.Time) {
	m.GenerationDuration.Observe(time.Since(start).Seconds())
}

// ObserveScoring records the duration of a scoring pass started at start.
func (m *Metrics) ObserveScoring(start time.Time) {
	m.ScoringDuration.Observe(time.Since(start).Seconds())
}
