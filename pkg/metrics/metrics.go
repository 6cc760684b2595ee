package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for profile operations.
type Metrics struct {
	// Operation outcomes by operation name and error kind ("ok" on success)
	OperationOutcome *prometheus.CounterVec

	// Operation latency by operation name
	OperationLatency *prometheus.HistogramVec

	// Lifecycle transitions by event and resulting state
	Transitions *prometheus.CounterVec

	// Result count distribution for search
	SearchResults prometheus.Histogram
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		OperationOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_registry_operations_total",
			Help: "Total profile service operations by outcome",
		}, []string{"operation", "outcome"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profile_registry_operation_duration_seconds",
			Help:    "Duration of profile service operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_registry_lifecycle_transitions_total",
			Help: "Lifecycle transitions applied, by event and resulting state",
		}, []string{"event", "state"}),

		SearchResults: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "profile_registry_search_results",
			Help:    "Number of profiles matched per search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		}),
	}
}

// ObserveOperation records the outcome and duration of one operation.
func (m *Metrics) ObserveOperation(operation, outcome string, d time.Duration) {
	if m != nil {
		m.OperationOutcome.WithLabelValues(operation, outcome).Inc()
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// IncrementTransition records an applied lifecycle transition.
func (m *Metrics) IncrementTransition(event, state string) {
	if m != nil {
		m.Transitions.WithLabelValues(event, state).Inc()
	}
}

// ObserveSearchResults records how many profiles a search matched.
func (m *Metrics) ObserveSearchResults(total int) {
	if m != nil {
		m.SearchResults.Observe(float64(total))
	}
}
