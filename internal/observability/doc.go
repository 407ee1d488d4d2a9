// Package observability provides logging and metrics support for the
// rehabilitation research service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithSearchContext(logger, query, maxResults)
//	logger.Warn().Err(err).Str("stage", "search").Msg("search failed")
//
// # Metrics
//
//	metrics := observability.NewMetrics("rehab_research")
//	metrics.RecordSearchStarted()
//	metrics.RecordStageFailure("enrich")
//
// A nil *Metrics is accepted everywhere and records nothing.
//
// # Standard Fields
//
//   - request_id: HTTP request correlation identifier
//   - query: free-text search query
//   - max_results: result bound for a search
//   - pmid: PubMed article identifier
//   - stage: pipeline stage (search, fetch, enrich)
//   - component: emitting component
package observability
