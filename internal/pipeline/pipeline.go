// Package pipeline turns a free-text query into a bounded, deduplicated list of
// normalized article records by composing a literature source's search, batch
// fetch and per-article enrichment calls.
//
// The pipeline never fails. Upstream errors are logged and degrade the result:
// a failed search or fetch yields no records, a failed enrichment leaves that
// record's keywords and subject terms empty.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/rehab-research-service/internal/domain"
	"github.com/helixir/rehab-research-service/internal/observability"
	"github.com/helixir/rehab-research-service/internal/papersources"
)

// Pipeline stages, used in logs, metrics and Failure values.
const (
	StageSearch = "search"
	StageFetch  = "fetch"
	StageEnrich = "enrich"
)

const (
	// DefaultPacingInterval is the minimum spacing between detail page requests.
	DefaultPacingInterval = 500 * time.Millisecond

	// NoPacing disables detail page pacing. Only for tests and local fakes.
	NoPacing time.Duration = -1
)

// Options configures a Pipeline.
type Options struct {
	// PacingInterval spaces consecutive detail page requests of one run.
	// Zero means DefaultPacingInterval; NoPacing disables pacing.
	PacingInterval time.Duration

	// EnrichmentWorkers is the number of concurrent detail page workers.
	// Values below 2 enrich strictly sequentially.
	EnrichmentWorkers int

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Failure describes one degraded upstream call.
type Failure struct {
	Stage string
	// ID is the article identifier for enrichment failures.
	ID  string
	Err error
}

// Error implements the error interface.
func (f Failure) Error() string {
	if f.ID != "" {
		return fmt.Sprintf("%s %s: %v", f.Stage, f.ID, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

// Unwrap returns the underlying error.
func (f Failure) Unwrap() error {
	return f.Err
}

// Result is the full outcome of a run.
type Result struct {
	// Records is never nil.
	Records []domain.ArticleRecord

	// Resolved is the number of distinct identifiers the search produced,
	// after truncation to the bound.
	Resolved int

	// Failures lists every degraded call in stage order.
	Failures []Failure
}

// UpstreamFailed reports whether the search or fetch stage failed. Enrichment
// failures never make a run count as failed.
func (r Result) UpstreamFailed() bool {
	for _, f := range r.Failures {
		if f.Stage == StageSearch || f.Stage == StageFetch {
			return true
		}
	}
	return false
}

// Pipeline orchestrates one literature source. It is safe for concurrent use;
// every run gets its own pacing limiter.
type Pipeline struct {
	searcher papersources.IDSearcher
	fetcher  papersources.ArticleFetcher
	enricher papersources.SupplementFetcher

	pacing  time.Duration
	workers int
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates a pipeline over a complete source.
func New(source papersources.Source, opts Options) *Pipeline {
	return NewWithComponents(source, source, source, opts)
}

// NewWithComponents creates a pipeline from separate search, fetch and
// enrichment components.
func NewWithComponents(
	searcher papersources.IDSearcher,
	fetcher papersources.ArticleFetcher,
	enricher papersources.SupplementFetcher,
	opts Options,
) *Pipeline {
	pacing := opts.PacingInterval
	if pacing == 0 {
		pacing = DefaultPacingInterval
	}
	workers := opts.EnrichmentWorkers
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		searcher: searcher,
		fetcher:  fetcher,
		enricher: enricher,
		pacing:   pacing,
		workers:  workers,
		logger:   opts.Logger.With().Str("component", "pipeline").Logger(),
		metrics:  opts.Metrics,
	}
}

// Resolve returns at most bound enriched records for query. An empty result
// means either that nothing matched or that an upstream call failed; use Run
// to tell the two apart.
func (p *Pipeline) Resolve(ctx context.Context, query string, bound int) []domain.ArticleRecord {
	return p.Run(ctx, query, bound).Records
}

// Run executes the pipeline and reports what degraded along the way.
func (p *Pipeline) Run(ctx context.Context, query string, bound int) Result {
	query = strings.TrimSpace(query)
	logger := observability.WithSearchContext(observability.LoggerFromContext(ctx, p.logger), query, bound)
	result := Result{Records: []domain.ArticleRecord{}}

	if query == "" || bound <= 0 {
		logger.Debug().Msg("empty query or non-positive bound, nothing to resolve")
		return result
	}

	p.metrics.RecordSearchStarted()
	start := time.Now()
	defer func() {
		p.metrics.RecordSearchCompleted(len(result.Records), time.Since(start).Seconds())
	}()

	ids, err := p.searcher.SearchIDs(ctx, query, bound)
	if err != nil {
		result.Failures = append(result.Failures, p.fail(logger, StageSearch, "", err))
	}
	ids = uniqueIDs(ids, bound)
	result.Resolved = len(ids)
	if len(ids) == 0 {
		logger.Info().Msg("no articles resolved")
		return result
	}

	records, err := p.fetcher.FetchArticles(ctx, ids)
	if err != nil {
		result.Failures = append(result.Failures, p.fail(logger, StageFetch, "", err))
	}
	records = uniqueRecords(records, len(ids))
	if len(records) == 0 {
		logger.Info().Int("resolved", len(ids)).Msg("no article details fetched")
		return result
	}

	result.Failures = append(result.Failures, p.enrich(ctx, logger, records)...)
	result.Records = records

	logger.Info().
		Int("resolved", result.Resolved).
		Int("records", len(records)).
		Int("failures", len(result.Failures)).
		Dur("duration", time.Since(start)).
		Msg("search completed")
	return result
}

// enrich merges detail page supplements into records in place and returns the
// enrichment failures in record order.
func (p *Pipeline) enrich(ctx context.Context, logger zerolog.Logger, records []domain.ArticleRecord) []Failure {
	limiter := papersources.NewIntervalLimiter(p.pacing)
	errs := make([]error, len(records))

	workers := p.workers
	if workers > len(records) {
		workers = len(records)
	}

	if workers <= 1 {
		for i := range records {
			errs[i] = p.enrichOne(ctx, limiter, &records[i])
		}
	} else {
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					errs[i] = p.enrichOne(ctx, limiter, &records[i])
				}
			}()
		}
		for i := range records {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	}

	var failures []Failure
	for i, err := range errs {
		if err != nil {
			articleLogger := observability.WithArticleContext(logger, records[i].ID)
			failures = append(failures, p.fail(articleLogger, StageEnrich, records[i].ID, err))
		}
	}
	return failures
}

// enrichOne waits for the pacing limiter, then fetches and merges one supplement.
// The record always ends up with non-nil keyword and subject term lists.
func (p *Pipeline) enrichOne(ctx context.Context, limiter *papersources.RateLimiter, rec *domain.ArticleRecord) error {
	if err := limiter.Wait(ctx); err != nil {
		*rec = rec.WithSupplement(domain.EmptySupplement())
		p.metrics.RecordEnrichment(true)
		return fmt.Errorf("pacing wait: %w", err)
	}

	supplement, err := p.enricher.FetchSupplement(ctx, rec.ID)
	if err != nil {
		supplement = domain.EmptySupplement()
	}
	*rec = rec.WithSupplement(supplement)
	p.metrics.RecordEnrichment(err != nil)
	return err
}

func (p *Pipeline) fail(logger zerolog.Logger, stage, id string, err error) Failure {
	logger.Warn().Err(err).Str("stage", stage).Msg("upstream call degraded")
	p.metrics.RecordStageFailure(stage)
	return Failure{Stage: stage, ID: id, Err: err}
}

// uniqueIDs truncates ids to bound and drops blanks and repeats, keeping first occurrences.
func uniqueIDs(ids []string, bound int) []string {
	if len(ids) > bound {
		ids = ids[:bound]
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// uniqueRecords normalizes records, drops those repeating an earlier identifier
// and caps the result at limit. Records without an identifier are never
// treated as repeats.
func uniqueRecords(records []domain.ArticleRecord, limit int) []domain.ArticleRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.ArticleRecord, 0, len(records))
	for _, r := range records {
		if len(out) == limit {
			break
		}
		r = domain.NormalizeRecord(r, "")
		if r.ID != domain.UnknownID {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}
