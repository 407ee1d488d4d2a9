// Package papersources defines the literature source contracts and the shared
// HTTP plumbing (rate-limited client, pacing limiter) used by source clients.
//
// Each contract degrades instead of failing: on error an implementation
// returns an empty, non-nil value together with the error, so callers can log
// the error and carry on with the empty value.
package papersources

import (
	"context"

	"github.com/helixir/rehab-research-service/internal/domain"
)

// IDSearcher resolves a free-text query into article identifiers.
type IDSearcher interface {
	// SearchIDs returns at most bound identifiers in upstream relevance order.
	SearchIDs(ctx context.Context, query string, bound int) ([]string, error)
}

// ArticleFetcher retrieves structured records for a batch of identifiers.
type ArticleFetcher interface {
	// FetchArticles returns the records found for ids in a single upstream call.
	// An empty ids slice returns an empty result without any network call.
	FetchArticles(ctx context.Context, ids []string) ([]domain.ArticleRecord, error)
}

// SupplementFetcher harvests tag lists from an article's detail page.
type SupplementFetcher interface {
	// FetchSupplement returns the keywords and subject terms of one article.
	FetchSupplement(ctx context.Context, id string) (domain.Supplement, error)
}

// Source bundles the three contracts a complete literature source offers.
type Source interface {
	IDSearcher
	ArticleFetcher
	SupplementFetcher
}
