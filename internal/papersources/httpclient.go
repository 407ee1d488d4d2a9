package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultUserAgent identifies the service to upstream hosts.
const DefaultUserAgent = "RehabResearchBot/1.0 (Educational Project)"

// DefaultTimeout bounds every outbound request.
const DefaultTimeout = 15 * time.Second

// HTTPClientConfig configures an HTTPClient. Zero values select the defaults.
type HTTPClientConfig struct {
	// Timeout bounds one request attempt.
	Timeout time.Duration

	// RateLimit is the sustained number of requests per second across all
	// endpoints sharing the client.
	RateLimit float64

	// BurstSize is how many requests may start back to back.
	BurstSize int

	// MaxRetries is the number of extra attempts after a 429, a 5xx or a
	// network error. Zero, the default, sends every request exactly once.
	MaxRetries int

	// RetryDelay is used between attempts when the upstream gives no Retry-After.
	RetryDelay time.Duration

	// UserAgent is sent unless the request already carries one.
	UserAgent string
}

func (c *HTTPClientConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 3
	}
	if c.BurstSize <= 0 {
		c.BurstSize = 3
	}
	c.MaxRetries = max(c.MaxRetries, 0)
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// HTTPClient is the outbound client shared by every upstream call of a source.
// Each attempt first takes a token from the client's rate limiter. It is safe
// for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a rate-limited client.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	cfg.applyDefaults()
	return &HTTPClient{
		client:      &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do sends req, waiting on the rate limiter before each attempt.
//
// With retries disabled the upstream response is returned whatever its
// status. With retries enabled, 429 and 5xx replies are retried (honoring
// Retry-After) and an error is returned once the attempts run out. A
// cancelled or expired context ends the call immediately.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	ctx := req.Context()
	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := rewindBody(req); err != nil {
				return nil, fmt.Errorf("cannot retry request: %w", err)
			}
		}
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		retriesLeft := attempt < c.config.MaxRetries

		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if !retriesLeft {
				return nil, lastErr
			}
			if err := sleep(ctx, c.config.RetryDelay); err != nil {
				return nil, err
			}

		case c.config.MaxRetries > 0 && retryableStatus(resp.StatusCode):
			delay := c.retryAfter(resp)
			drain(resp)
			if !retriesLeft {
				return nil, fmt.Errorf("max retries exhausted after %d attempts, last status: %d",
					attempt+1, resp.StatusCode)
			}
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}

		default:
			return resp, nil
		}
	}
}

// retryableStatus reports whether an upstream status is worth another attempt.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

// retryAfter reads the Retry-After header as seconds or an HTTP date and falls
// back to the configured delay.
func (c *HTTPClient) retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return c.config.RetryDelay
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs > 0 {
			return time.Duration(secs) * time.Second
		}
		return c.config.RetryDelay
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return c.config.RetryDelay
}

func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// rewindBody restores a consumed request body from GetBody. Requests without
// a body, which is every upstream call today, need nothing.
func rewindBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}
