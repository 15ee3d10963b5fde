package notifier

import (
	"time"

	"github.com/aleister1102/overwatch/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports classification counts and tracker latency.
type Metrics struct {
	classified      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics registers the notifier collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		classified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overwatch_findings_classified_total",
				Help: "Findings classified by outcome status and reason.",
			},
			[]string{"status", "reason"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "overwatch_tracker_request_duration_seconds",
				Help:    "Duration of issue tracker API requests.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
	}
}

// ObserveOutcome is safe to call on a nil receiver.
func (m *Metrics) ObserveOutcome(outcome models.Outcome) {
	if m == nil {
		return
	}
	m.classified.WithLabelValues(string(outcome.Status), string(outcome.Reason)).Inc()
}

// ObserveRequest implements tracker.RequestObserver.
func (m *Metrics) ObserveRequest(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
