package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the rehabilitation research service.
// Metrics are organized by subsystem: searches, enrichment, sources and LLM operations.
// All counters and histograms are registered via promauto with the default registry.
//
// A nil *Metrics is valid and records nothing, so components can take metrics optionally.
type Metrics struct {
	// SearchesStarted counts pipeline runs initiated.
	SearchesStarted prometheus.Counter

	// SearchesCompleted counts pipeline runs that returned, whatever their outcome.
	SearchesCompleted prometheus.Counter

	// SearchesEmpty counts pipeline runs that returned no records.
	SearchesEmpty prometheus.Counter

	// SearchDuration observes pipeline run duration in seconds.
	SearchDuration prometheus.Histogram

	// RecordsPerSearch observes the number of records returned per pipeline run.
	RecordsPerSearch prometheus.Histogram

	// StageFailures counts degraded failures, labeled by pipeline stage.
	StageFailures *prometheus.CounterVec

	// EnrichmentsTotal counts supplementary page extractions attempted.
	EnrichmentsTotal prometheus.Counter

	// EnrichmentsFailed counts supplementary page extractions that degraded.
	EnrichmentsFailed prometheus.Counter

	// SourceRequestsTotal counts HTTP requests to upstream sources, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed upstream requests, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes upstream request duration in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limit responses from upstream sources, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed by LLM operations, labeled by operation, model, and token type.
	LLMTokensUsed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Searches
		SearchesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of research searches started",
		}),
		SearchesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of research searches completed",
		}),
		SearchesEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_empty_total",
			Help:      "Total number of research searches that returned no records",
		}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of research searches in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		RecordsPerSearch: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "records_per_search",
			Help:      "Number of article records returned per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 15, 20},
		}),
		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Total number of degraded pipeline failures by stage",
		}, []string{"stage"}),

		// Enrichment
		EnrichmentsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Total number of detail page extractions attempted",
		}),
		EnrichmentsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_failed_total",
			Help:      "Total number of detail page extractions that failed",
		}),

		// Sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to upstream sources",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to upstream sources",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to upstream sources in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"source", "endpoint"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from upstream sources",
		}, []string{"source"}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"operation", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used by LLM operations",
		}, []string{"operation", "model", "token_type"}),
	}
}

// RecordSearchStarted records that a pipeline run has started.
func (m *Metrics) RecordSearchStarted() {
	if m == nil {
		return
	}
	m.SearchesStarted.Inc()
}

// RecordSearchCompleted records the outcome of a pipeline run.
func (m *Metrics) RecordSearchCompleted(recordCount int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SearchesCompleted.Inc()
	if recordCount == 0 {
		m.SearchesEmpty.Inc()
	}
	m.SearchDuration.Observe(durationSeconds)
	m.RecordsPerSearch.Observe(float64(recordCount))
}

// RecordStageFailure records a degraded failure in a pipeline stage.
func (m *Metrics) RecordStageFailure(stage string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage).Inc()
}

// RecordEnrichment records one supplementary page extraction.
func (m *Metrics) RecordEnrichment(failed bool) {
	if m == nil {
		return
	}
	m.EnrichmentsTotal.Inc()
	if failed {
		m.EnrichmentsFailed.Inc()
	}
}

// RecordSourceRequest records a request to an upstream source.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to an upstream source.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	if m == nil {
		return
	}
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
	m.LLMTokensUsed.WithLabelValues(operation, model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(operation, model, "output").Add(float64(outputTokens))
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	if m == nil {
		return
	}
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}
