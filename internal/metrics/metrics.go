// Package metrics provides Prometheus metrics for randmeme.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "randmeme"

var (
	// RefreshTotal counts refresh cycles per category by outcome.
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Total number of category refreshes",
		},
		[]string{"category", "status"},
	)

	// RefreshDuration measures a full category refresh.
	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of category refreshes in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"category"},
	)

	// PoolSize tracks the number of validated URLs per category.
	PoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_size",
			Help:      "Number of validated URLs cached per category",
		},
		[]string{"category"},
	)

	// ValidationTotal counts URL validations by result.
	ValidationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_total",
			Help:      "Total number of candidate URL validations",
		},
		[]string{"result"},
	)

	// FetchTotal counts image downloads by outcome.
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Total number of image downloads",
		},
		[]string{"status"},
	)

	// CompressionPasses observes the number of quality passes per request.
	CompressionPasses = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compression_passes",
			Help:      "Distribution of adaptive compression passes",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 10},
		},
		[]string{"format"},
	)

	// ServedTotal counts responses of the image route by HTTP status.
	ServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "served_total",
			Help:      "Total number of image route responses",
		},
		[]string{"code"},
	)
)

// RecordRefresh records the outcome of one category refresh.
func RecordRefresh(category, status string, seconds float64) {
	RefreshTotal.WithLabelValues(category, status).Inc()
	RefreshDuration.WithLabelValues(category).Observe(seconds)
}

// SetPoolSize records the published pool size for a category.
func SetPoolSize(category string, size int) {
	PoolSize.WithLabelValues(category).Set(float64(size))
}

// RecordValidation records a single validation result.
func RecordValidation(ok bool) {
	result := "rejected"
	if ok {
		result = "accepted"
	}
	ValidationTotal.WithLabelValues(result).Inc()
}

// RecordFetch records an image download outcome.
func RecordFetch(status string) {
	FetchTotal.WithLabelValues(status).Inc()
}

// RecordCompression records how many quality passes a compression took.
func RecordCompression(format string, passes int) {
	CompressionPasses.WithLabelValues(format).Observe(float64(passes))
}

// RecordServed records one response of the image route.
func RecordServed(code int) {
	ServedTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}
