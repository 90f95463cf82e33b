// Package fetch is the page-retrieval collaborator used by the crawler.
// It owns retries, rate limiting and body-size guarding; callers get at
// most one result or one transport error per URL.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; SiteMonitor/1.0; +https://github.com/mbrown1837/Website-Monitoring-System-sub000)"
	maxBodyBytes = 4 << 20 // 4 MiB of HTML is plenty for comparison
)

// ErrUnreachable wraps transport-level failures (DNS, refused, timeout).
// An HTTP error status is not an error here; it comes back as a Result.
var ErrUnreachable = errors.New("unreachable")

// Result is a completed fetch. StatusCode is always set; Body is empty
// for probe-only requests and non-HTML content.
type Result struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// HTML reports whether the response carried an HTML payload.
func (r *Result) HTML() bool {
	mime := strings.ToLower(strings.Split(r.ContentType, ";")[0])
	return mime == "text/html" || mime == "application/xhtml+xml"
}

// RetryCounter records fetch retry attempts per URL in an external
// store, giving operators a view of flaky hosts.
type RetryCounter interface {
	IncrFetchRetries(ctx context.Context, url string) error
}

// Fetcher retrieves pages with politeness rate limiting and bounded
// exponential backoff on transient failures.
type Fetcher struct {
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retries    RetryCounter
	logger     *zap.Logger
}

// New builds a Fetcher. ratePerSecond bounds request rate across one
// crawl; maxRetries bounds attempts per URL (0 means a single attempt).
func New(timeout time.Duration, ratePerSecond, maxRetries int, logger *zap.Logger) *Fetcher {
	if ratePerSecond <= 0 {
		ratePerSecond = 8
	}
	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// CountRetries wires an external retry counter. Counting is best
// effort; a counter failure never affects the fetch.
func (f *Fetcher) CountRetries(rc RetryCounter) {
	f.retries = rc
}

// Fetch GETs a URL and returns status, content type and body. Transport
// failures are retried with exponential backoff before giving up with
// ErrUnreachable; HTTP 4xx/5xx responses are returned as results, not
// errors, so the caller can record them as broken links.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	return f.do(ctx, http.MethodGet, rawURL, true)
}

// Probe checks reachability without downloading the body. Used for
// external links, which are recorded but never expanded. Servers that
// reject HEAD get one GET attempt with the body discarded.
func (f *Fetcher) Probe(ctx context.Context, rawURL string) (*Result, error) {
	res, err := f.do(ctx, http.MethodHead, rawURL, false)
	if err == nil && res.StatusCode == http.StatusMethodNotAllowed {
		return f.do(ctx, http.MethodGet, rawURL, false)
	}
	return res, err
}

func (f *Fetcher) do(ctx context.Context, method, rawURL string, wantBody bool) (*Result, error) {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnreachable, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2

			if f.retries != nil {
				if err := f.retries.IncrFetchRetries(ctx, rawURL); err != nil {
					f.logger.Debug("retry counter update failed", zap.String("url", rawURL), zap.Error(err))
				}
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
		}

		res, retryable, err := f.attempt(ctx, method, rawURL, wantBody)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		f.logger.Debug("fetch attempt failed",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return nil, fmt.Errorf("%w: %v", ErrUnreachable, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, method, rawURL string, wantBody bool) (*Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		// DNS, refused, timeout: worth another attempt.
		return nil, true, err
	}
	defer resp.Body.Close()

	result := &Result{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}

	if wantBody && resp.StatusCode < 300 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, true, err
		}
		result.Body = body
	} else {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	}

	return result, false, nil
}
