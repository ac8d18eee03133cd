// Package metrics exposes Prometheus instruments for reputation scoring and the
// ratings feed.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	recomputationsTotal *prometheus.CounterVec
	recomputeDuration   prometheus.Histogram
	compositeRating     prometheus.Histogram
	confidence          prometheus.Histogram
	feedRequestsTotal   *prometheus.CounterVec
	feedBreakerState    prometheus.Gauge
)

// Init registers all instruments with the default registry. Safe to call more than once.
func Init() {
	metricsOnce.Do(func() {
		recomputationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reputation_recomputations_total",
				Help: "Reputation recomputations by outcome",
			},
			[]string{"status"},
		)

		recomputeDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reputation_recompute_duration_seconds",
				Help:    "Time spent loading, scoring and saving one listing",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		)

		compositeRating = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reputation_composite_rating",
				Help:    "Distribution of non-null composite ratings (0-5)",
				Buckets: []float64{1, 2, 3, 3.5, 4, 4.25, 4.5, 4.75, 5},
			},
		)

		confidence = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reputation_confidence",
				Help:    "Distribution of confidence percentages (0-100)",
				Buckets: []float64{0, 10, 25, 50, 75, 90, 100},
			},
		)

		feedRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratingsfeed_requests_total",
				Help: "Ratings feed requests by outcome",
			},
			[]string{"outcome"},
		)

		feedBreakerState = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ratingsfeed_circuit_open",
				Help: "1 while the ratings feed circuit breaker is open",
			},
		)
	})
}

// RecordRecompute records one recomputation outcome.
// status: "scored", "no_data", "error"
func RecordRecompute(status string, elapsed time.Duration) {
	if recomputationsTotal != nil {
		recomputationsTotal.WithLabelValues(status).Inc()
	}
	if recomputeDuration != nil {
		recomputeDuration.Observe(elapsed.Seconds())
	}
}

// RecordScore records the derived values of a scored listing.
func RecordScore(composite *float64, conf int) {
	if composite != nil && compositeRating != nil {
		compositeRating.Observe(*composite)
	}
	if confidence != nil {
		confidence.Observe(float64(conf))
	}
}

// RecordFeedRequest records a ratings feed call.
// outcome: "ok", "not_found", "error", "circuit_open"
func RecordFeedRequest(outcome string) {
	if feedRequestsTotal != nil {
		feedRequestsTotal.WithLabelValues(outcome).Inc()
	}
}

// SetFeedCircuitOpen mirrors the breaker state.
func SetFeedCircuitOpen(open bool) {
	if feedBreakerState == nil {
		return
	}
	if open {
		feedBreakerState.Set(1)
		return
	}
	feedBreakerState.Set(0)
}
