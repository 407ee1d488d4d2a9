package pubmed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/rehab-research-service/internal/domain"
	"github.com/helixir/rehab-research-service/internal/observability"
	"github.com/helixir/rehab-research-service/internal/papersources"
)

const (
	// DefaultSearchBaseURL is the base URL for NCBI E-utilities API.
	DefaultSearchBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultDomainQualifier is appended to every search term.
	DefaultDomainQualifier = "rehabilitation"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// maxBodySize caps how much of an upstream response is read.
	maxBodySize = 10 << 20

	sourceName = "PubMed"
	sourceKey  = "pubmed"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// SearchBaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultSearchBaseURL if empty.
	SearchBaseURL string

	// PageBaseURL is the base URL of the article detail pages.
	// Defaults to domain.DefaultPageBaseURL if empty.
	PageBaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	APIKey string

	// DomainQualifier is ANDed onto every search term.
	// Defaults to DefaultDomainQualifier if empty.
	DomainQualifier string

	// Timeout is the per-request timeout.
	// Defaults to papersources.DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second across all endpoints.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the number of retries on 429 and 5xx responses. Zero disables retries.
	MaxRetries int

	// UserAgent is sent with every request.
	UserAgent string
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.SearchBaseURL == "" {
		c.SearchBaseURL = DefaultSearchBaseURL
	}
	c.SearchBaseURL = strings.TrimRight(c.SearchBaseURL, "/")
	if c.PageBaseURL == "" {
		c.PageBaseURL = domain.DefaultPageBaseURL
	}
	c.PageBaseURL = strings.TrimRight(c.PageBaseURL, "/")
	if c.DomainQualifier == "" {
		c.DomainQualifier = DefaultDomainQualifier
	}
	if c.Timeout <= 0 {
		c.Timeout = papersources.DefaultTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize <= 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.UserAgent == "" {
		c.UserAgent = papersources.DefaultUserAgent
	}
}

// Client talks to the E-utilities endpoints and the article detail pages.
// It is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// Compile-time check that Client implements Source.
var _ papersources.Source = (*Client)(nil)

// Option configures optional Client collaborators.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With().Str("component", "pubmed_client").Logger()
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a new PubMed client with the given configuration.
func New(cfg Config, opts ...Option) *Client {
	cfg.applyDefaults()

	httpCfg := papersources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  cfg.UserAgent,
	}

	return NewWithHTTPClient(cfg, papersources.NewHTTPClient(httpCfg), opts...)
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, opts ...Option) *Client {
	cfg.applyDefaults()
	c := &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageBaseURL returns the detail page base URL in use.
func (c *Client) PageBaseURL() string {
	return c.config.PageBaseURL
}

// SearchTerm builds the upstream search term for a free-text query.
func (c *Client) SearchTerm(query string) string {
	return query + " AND " + c.config.DomainQualifier
}

// SearchIDs resolves a free-text query into at most bound PubMed identifiers,
// in upstream relevance order. On any failure it returns an empty slice and the error.
func (c *Client) SearchIDs(ctx context.Context, query string, bound int) ([]string, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("term", c.SearchTerm(query))
	q.Set("retmax", strconv.Itoa(bound))
	q.Set("retmode", "json")
	q.Set("sort", "relevance")

	body, err := c.get(ctx, "esearch", c.config.SearchBaseURL+"/esearch.fcgi", q, true)
	if err != nil {
		return []string{}, fmt.Errorf("esearch failed: %w", err)
	}

	var resp ESearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.metrics.RecordSourceRequestFailed(sourceKey, "esearch", "decode")
		return []string{}, fmt.Errorf("esearch failed: %w", domain.NewMalformedDocumentError("json", err))
	}
	if resp.Result.Error != "" {
		c.metrics.RecordSourceRequestFailed(sourceKey, "esearch", "api_error")
		return []string{}, fmt.Errorf("esearch failed: %w",
			domain.NewExternalAPIError(sourceName, http.StatusOK, resp.Result.Error, nil))
	}

	ids := make([]string, 0, len(resp.Result.IDList))
	for _, id := range resp.Result.IDList {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// FetchArticles retrieves and parses the records for the given identifiers in
// one request. An empty id list makes no network call. On failure it returns
// an empty slice and the error.
func (c *Client) FetchArticles(ctx context.Context, ids []string) ([]domain.ArticleRecord, error) {
	if len(ids) == 0 {
		return []domain.ArticleRecord{}, nil
	}

	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(ids, ","))
	q.Set("retmode", "xml")

	body, err := c.get(ctx, "efetch", c.config.SearchBaseURL+"/efetch.fcgi", q, true)
	if err != nil {
		return []domain.ArticleRecord{}, fmt.Errorf("efetch failed: %w", err)
	}

	records, err := parseArticleSet(body, c.config.PageBaseURL)
	if err != nil {
		c.metrics.RecordSourceRequestFailed(sourceKey, "efetch", "decode")
		return []domain.ArticleRecord{}, fmt.Errorf("efetch failed: %w", err)
	}
	return records, nil
}

// get performs a GET request and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, endpoint, rawURL string, q url.Values, withKey bool) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if withKey && c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	c.metrics.RecordSourceRequest(sourceKey, endpoint, elapsed.Seconds())
	if err != nil {
		c.metrics.RecordSourceRequestFailed(sourceKey, endpoint, transportErrorType(err))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", elapsed).
		Msg("upstream request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusTooManyRequests {
			c.metrics.RecordSourceRateLimited(sourceKey)
		}
		c.metrics.RecordSourceRequestFailed(sourceKey, endpoint, "status_"+strconv.Itoa(resp.StatusCode))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, strings.TrimSpace(string(body)), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.metrics.RecordSourceRequestFailed(sourceKey, endpoint, "read")
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func transportErrorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}
