// Tracks scheduler-side telemetry: picks, cluster and window shape, novelty
// scores and feature-build outcomes.

package sched

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the scheduler's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Picks         *prometheus.CounterVec // selections by outcome (round-robin, fallback)
	Clusters      prometheus.Gauge       // clusters in the last selection batch
	WindowFill    prometheus.Gauge       // window entries after the last refill
	Novelty       prometheus.Histogram   // novelty scores assigned per batch member
	FeatureBuilds *prometheus.CounterVec // feature builds by outcome (ok, empty, unreadable)
}

// NewMetrics creates the collectors under namespace and registers them on
// reg. Returns an error if any collector is already registered.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Picks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "picks_total",
			Help:      "Test cases selected by the overlay scheduler.",
		}, []string{"outcome"}),
		Clusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clusters",
			Help:      "Signature clusters in the last selection batch.",
		}),
		WindowFill: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_entries",
			Help:      "Entries held by the lookahead window.",
		}),
		Novelty: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "novelty_score",
			Help:      "Novelty scores assigned to batch members.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		FeatureBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_builds_total",
			Help:      "Feature bundles built, by outcome.",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{m.Picks, m.Clusters, m.WindowFill, m.Novelty, m.FeatureBuilds} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeFeatureBuild(outcome string) {
	if m == nil {
		return
	}
	m.FeatureBuilds.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeSelection(idx *ClusterIndex, sel Selection) {
	if m == nil {
		return
	}
	outcome := "round-robin"
	if sel.Cluster < 0 {
		outcome = "fallback"
	}
	m.Picks.WithLabelValues(outcome).Inc()
	m.Clusters.Set(float64(len(idx.Clusters)))
	for c := range idx.Clusters {
		for _, s := range idx.Clusters[c].Scores {
			m.Novelty.Observe(s)
		}
	}
}

func (m *Metrics) observeWindow(n int) {
	if m == nil {
		return
	}
	m.WindowFill.Set(float64(n))
}

// Distribution captures statistical summary of a metric.
type Distribution struct {
	Mean  float64
	P50   float64
	P95   float64
	P99   float64
	Min   float64
	Max   float64
	Count int
}

// NewDistribution computes a Distribution from raw values.
// Returns zero-value Distribution for empty input.
func NewDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return Distribution{
		Mean:  sum / float64(len(sorted)),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		P99:   percentile(sorted, 99),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Count: len(sorted),
	}
}

// percentile computes the p-th percentile using linear interpolation.
// Input must be sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100.0 * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
