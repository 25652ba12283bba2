package fetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/syllime/sylli-crawl/internal/model"
)

// Fetcher performs the HTTP fetch for one task, including retries.
// It owns outcome classification; workers and the processor only see
// the tagged result.
type Fetcher struct {
	// client performs the requests. Injected so tests and proxy
	// configurations can swap the transport.
	client *http.Client

	// userAgent identifies the crawler in requests.
	userAgent string

	// maxBodySize limits how many response bytes are read.
	maxBodySize int64

	// retry decides attempt counts and backoff.
	retry RetryPolicy

	// siteHeaders returns extra headers for a host, or nil. Loaded
	// from the site configuration.
	siteHeaders func(host string) map[string]string
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent sets the User-Agent header for all requests.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize limits the number of response bytes read per page.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithRetryPolicy overrides the default retry behavior.
func WithRetryPolicy(p RetryPolicy) FetcherOption {
	return func(f *Fetcher) {
		f.retry = p
	}
}

// WithSiteHeaders installs a lookup for per-host extra headers.
func WithSiteHeaders(lookup func(host string) map[string]string) FetcherOption {
	return func(f *Fetcher) {
		f.siteHeaders = lookup
	}
}

// NewFetcher creates a Fetcher using the given client.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      client,
		userAgent:   "sylli-crawl/1.0 (+https://github.com/syllime/sylli-crawl)",
		maxBodySize: 5 * 1024 * 1024,
		retry:       DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Do fetches a task, retrying transient failures with exponential
// backoff until the retry budget runs out. The returned result always
// carries a terminal outcome: success, redirect, or permanent.
func (f *Fetcher) Do(ctx context.Context, task model.Task) *model.FetchResult {
	start := time.Now()

	var result *model.FetchResult
	attempts := f.retry.Attempts()

	for attempt := 1; attempt <= attempts; attempt++ {
		result = f.fetchOnce(ctx, task)
		result.Attempts = attempt

		if !result.Outcome.Retryable() {
			break
		}
		if attempt == attempts || ctx.Err() != nil {
			break
		}

		select {
		case <-time.After(f.retry.Backoff(attempt)):
		case <-ctx.Done():
			attempt = attempts // no further tries after cancellation
		}
	}

	// A failure that is still transient after the last attempt is
	// terminal for this task.
	if result.Outcome == model.OutcomeTransient {
		result.Outcome = model.OutcomePermanent
	}

	result.Elapsed = time.Since(start)
	result.FetchedAt = time.Now()
	return result
}

// fetchOnce performs a single HTTP attempt and classifies its outcome.
func (f *Fetcher) fetchOnce(ctx context.Context, task model.Task) *model.FetchResult {
	result := &model.FetchResult{Task: task}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.RawURL, nil)
	if err != nil {
		// A URL that cannot even form a request will never succeed.
		result.Outcome = model.OutcomePermanent
		result.Err = err
		return result
	}

	var extra map[string]string
	if f.siteHeaders != nil {
		extra = f.siteHeaders(task.Host)
	}
	applyHeaders(req, f.userAgent, extra)

	resp, err := f.client.Do(req)
	if err != nil {
		// Network-level failures (timeout, reset, refused) may clear
		// up on retry.
		result.Outcome = model.OutcomeTransient
		result.Err = err
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.ContentType = resp.Header.Get("Content-Type")
	result.Headers = resp.Header

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
		if err != nil {
			result.Outcome = model.OutcomeTransient
			result.Err = err
			return result
		}
		result.Body = body
		result.Outcome = model.OutcomeSuccess

	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		// The client never follows redirects itself; the Location
		// target is admitted like a discovered link downstream.
		result.Outcome = model.OutcomeRedirect

	case resp.StatusCode == http.StatusTooManyRequests:
		result.Outcome = model.OutcomeTransient

	case resp.StatusCode >= 500:
		result.Outcome = model.OutcomeTransient

	default:
		// Remaining 4xx: the server understood us and said no.
		result.Outcome = model.OutcomePermanent
	}

	return result
}
