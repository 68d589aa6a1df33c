package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CurationRuns counts curation attempts by outcome
	// (success, skipped, conflict, empty, persistence_error, error).
	CurationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curation_runs_total",
			Help: "Total number of curation attempts by outcome",
		},
		[]string{"outcome"},
	)

	CurationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curation_duration_seconds",
			Help:    "Duration of curation runs that reached the fetch stage",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	CandidatesFetched = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curation_candidates_fetched",
			Help: "Candidates returned by the most recent fetch",
		},
	)

	FeaturedEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curation_featured_entries",
			Help: "Entries persisted by the most recent successful run",
		},
	)

	LastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curation_last_success_timestamp_seconds",
			Help: "Unix time of the last successful curation run",
		},
	)

	ProviderPageFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provider_page_failures_total",
			Help: "Upcoming-page requests that failed and contributed no candidates",
		},
	)

	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Metadata provider requests by result",
		},
		[]string{"result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)
)
