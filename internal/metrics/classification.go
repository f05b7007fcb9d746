package metrics

import "github.com/prometheus/client_golang/prometheus"

// Classification and index Prometheus metrics.
var (
	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classification requests by outcome",
		},
		[]string{"outcome"},
	)

	ClassificationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classification_duration_seconds",
			Help:      "End-to-end classification latency",
			Buckets:   prometheus.DefBuckets,
		},
	)

	IndexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_size",
			Help:      "Number of category vectors in the active index snapshot",
		},
	)

	IndexRebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_rebuild_duration_seconds",
			Help:      "Category index rebuild duration",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	IndexEmbeddingsReusedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_embeddings_reused_total",
			Help:      "Category vectors reused on rebuild because content was unchanged",
		},
	)
)

var classMetricsRegistered bool

// RegisterClassificationMetrics registers classification and index metrics. Must be called once from main.
func RegisterClassificationMetrics() {
	if classMetricsRegistered {
		return
	}
	prometheus.MustRegister(ClassificationsTotal)
	prometheus.MustRegister(ClassificationDuration)
	prometheus.MustRegister(IndexSize)
	prometheus.MustRegister(IndexRebuildDuration)
	prometheus.MustRegister(IndexEmbeddingsReusedTotal)
	classMetricsRegistered = true
}
