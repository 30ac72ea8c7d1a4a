// Package httpclient provides a shared rate-limited, retrying HTTP client
// for external API integrations (literature sources, lookup services).
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bioagent-ai/bioagent/internal/ratelimit"
	"github.com/bioagent-ai/bioagent/internal/retry"
)

// Config configures a RateLimitedClient.
type Config struct {
	// BaseURL is prepended to relative paths passed to Do/FetchJSON.
	BaseURL string

	// RateLimit bounds outbound request frequency to this source.
	RateLimit ratelimit.Config

	// Retry configures transient-failure backoff.
	Retry retry.Config

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration

	// Headers are sent with every request (e.g. API keys, User-Agent).
	Headers map[string]string
}

// DefaultConfig returns sane per-source defaults: gentle rate limiting and
// a short exponential backoff, matching the min-interval behavior external
// literature APIs expect from polite clients.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		RateLimit: ratelimit.Config{RequestsPerSecond: 3, BurstSize: 3, Enabled: true},
		Retry:     retry.Exponential(3, 250*time.Millisecond, 5*time.Second),
		Timeout:   15 * time.Second,
	}
}

// RateLimitedClient wraps http.Client with a token bucket and retry policy
// shared across every call a source makes, so one process-wide instance is
// reused across turns instead of re-created per request.
type RateLimitedClient struct {
	cfg    Config
	http   *http.Client
	bucket *ratelimit.Bucket
}

// New constructs a RateLimitedClient from Config.
func New(cfg Config) *RateLimitedClient {
	return &RateLimitedClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		bucket: ratelimit.NewBucket(cfg.RateLimit),
	}
}

// waitForToken blocks until the bucket has a token available or ctx is done.
// ratelimit.Bucket itself is non-blocking (Allow/WaitTime); this layers the
// blocking semantics an outbound API client needs on top.
func waitForToken(ctx context.Context, b *ratelimit.Bucket) error {
	for {
		if b.Allow() {
			return nil
		}
		wait := b.WaitTime()
		if wait <= 0 {
			wait = time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Do issues an HTTP request, waiting on the rate limiter and retrying
// transient failures (5xx, network errors). 4xx responses are wrapped as
// retry.Permanent so the retry loop stops immediately.
func (c *RateLimitedClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	var resp *http.Response
	result := retry.Do(ctx, c.cfg.Retry, func() error {
		if err := waitForToken(ctx, c.bucket); err != nil {
			return err
		}
		r, err := c.http.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode >= 500 {
			_ = r.Body.Close()
			return fmt.Errorf("%s: server error %d", req.URL, r.StatusCode)
		}
		if r.StatusCode >= 400 {
			_ = r.Body.Close()
			return retry.Permanent(fmt.Errorf("%s: client error %d", req.URL, r.StatusCode))
		}
		resp = r
		return nil
	})
	if result.Err != nil {
		return nil, result.Err
	}
	return resp, nil
}

// FetchJSON issues a GET request against path (resolved against BaseURL) and
// decodes the JSON body into out.
func (c *RateLimitedClient) FetchJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// PageFetcher fetches one page given an offset/cursor and returns the
// decoded page, whether more pages remain, and the next offset.
type PageFetcher[T any] func(ctx context.Context, offset int) (page []T, hasMore bool, nextOffset int, err error)

// PaginatedFetch drives a PageFetcher until exhausted or maxPages is hit,
// accumulating all pages into a single slice.
func PaginatedFetch[T any](ctx context.Context, maxPages int, fetch PageFetcher[T]) ([]T, error) {
	var all []T
	offset := 0
	for page := 0; maxPages <= 0 || page < maxPages; page++ {
		items, hasMore, next, err := fetch(ctx, offset)
		if err != nil {
			return all, err
		}
		all = append(all, items...)
		if !hasMore {
			break
		}
		offset = next
	}
	return all, nil
}
