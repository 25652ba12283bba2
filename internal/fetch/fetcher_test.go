package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/syllime/sylli-crawl/internal/model"
)

// newTestTask builds a task pointing at a test server URL.
func newTestTask(rawURL string) model.Task {
	return model.NewTask(rawURL, rawURL, "127.0.0.1", 0)
}

// fastRetry returns a retry policy that keeps tests quick.
func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
}

// TestFetcherDo tests outcome classification and retry behavior.
func TestFetcherDo(t *testing.T) {
	t.Parallel()

	t.Run("successful fetch", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><title>ok</title></html>"))
		}))
		defer server.Close()

		f := NewFetcher(server.Client(), WithRetryPolicy(fastRetry(3)))
		result := f.Do(context.Background(), newTestTask(server.URL+"/page"))

		if !result.Succeeded() {
			t.Fatalf("expected success, got %s (%v)", result.Outcome, result.Err)
		}
		if result.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", result.StatusCode)
		}
		if result.Attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", result.Attempts)
		}
		if string(result.Body) != "<html><title>ok</title></html>" {
			t.Errorf("unexpected body: %q", result.Body)
		}
	})

	t.Run("404 is permanent without retry", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		f := NewFetcher(server.Client(), WithRetryPolicy(fastRetry(3)))
		result := f.Do(context.Background(), newTestTask(server.URL+"/missing"))

		if result.Outcome != model.OutcomePermanent {
			t.Errorf("expected permanent outcome, got %s", result.Outcome)
		}
		if hits.Load() != 1 {
			t.Errorf("4xx should not be retried, server saw %d requests", hits.Load())
		}
	})

	t.Run("5xx retried then succeeds", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("recovered"))
		}))
		defer server.Close()

		f := NewFetcher(server.Client(), WithRetryPolicy(fastRetry(3)))
		result := f.Do(context.Background(), newTestTask(server.URL+"/flaky"))

		if !result.Succeeded() {
			t.Fatalf("expected eventual success, got %s", result.Outcome)
		}
		if result.Attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", result.Attempts)
		}
	})

	t.Run("retry budget exhaustion becomes permanent", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		f := NewFetcher(server.Client(), WithRetryPolicy(fastRetry(2)))
		result := f.Do(context.Background(), newTestTask(server.URL+"/broken"))

		if result.Outcome != model.OutcomePermanent {
			t.Errorf("expected permanent after budget exhaustion, got %s", result.Outcome)
		}
		if hits.Load() != 2 {
			t.Errorf("expected 2 attempts, server saw %d", hits.Load())
		}
	})

	t.Run("429 is transient", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		f := NewFetcher(server.Client(), WithRetryPolicy(fastRetry(2)))
		result := f.Do(context.Background(), newTestTask(server.URL+"/limited"))

		if !result.Succeeded() {
			t.Errorf("expected success after 429 retry, got %s", result.Outcome)
		}
	})

	t.Run("redirect surfaces instead of being followed", func(t *testing.T) {
		t.Parallel()

		var targetHits atomic.Int64
		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/target", http.StatusFound)
		})
		mux.HandleFunc("/target", func(w http.ResponseWriter, _ *http.Request) {
			targetHits.Add(1)
			_, _ = w.Write([]byte("<html><title>target</title></html>"))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		// The production client owns the no-follow redirect policy.
		client, err := NewClient(5*time.Second, "")
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}

		f := NewFetcher(client, WithRetryPolicy(fastRetry(1)))
		result := f.Do(context.Background(), newTestTask(server.URL+"/old"))

		if result.Outcome != model.OutcomeRedirect {
			t.Fatalf("expected redirect outcome, got %s (status %d, body %q)",
				result.Outcome, result.StatusCode, result.Body)
		}
		if result.StatusCode != http.StatusFound {
			t.Errorf("expected 302, got %d", result.StatusCode)
		}
		if got := result.Headers.Get("Location"); got != "/target" {
			t.Errorf("expected Location header preserved, got %q", got)
		}
		if targetHits.Load() != 0 {
			t.Errorf("redirect target was fetched %d times by the client", targetHits.Load())
		}
	})

	t.Run("connection failure is retried as transient", func(t *testing.T) {
		t.Parallel()

		// A server that is immediately closed gives connection refused.
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		url := server.URL
		server.Close()

		f := NewFetcher(http.DefaultClient, WithRetryPolicy(fastRetry(2)))
		result := f.Do(context.Background(), newTestTask(url))

		if result.Outcome != model.OutcomePermanent {
			t.Errorf("expected permanent after retries, got %s", result.Outcome)
		}
		if result.Attempts != 2 {
			t.Errorf("expected 2 attempts, got %d", result.Attempts)
		}
		if result.Err == nil {
			t.Error("expected error detail on the result")
		}
	})

	t.Run("body size is limited", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(make([]byte, 4096))
		}))
		defer server.Close()

		f := NewFetcher(server.Client(), WithMaxBodySize(1024), WithRetryPolicy(fastRetry(1)))
		result := f.Do(context.Background(), newTestTask(server.URL))

		if len(result.Body) != 1024 {
			t.Errorf("expected body truncated to 1024 bytes, got %d", len(result.Body))
		}
	})

	t.Run("per-site headers applied", func(t *testing.T) {
		t.Parallel()

		var gotAuth atomic.Value
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth.Store(r.Header.Get("Authorization"))
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		f := NewFetcher(server.Client(),
			WithRetryPolicy(fastRetry(1)),
			WithSiteHeaders(func(string) map[string]string {
				return map[string]string{"Authorization": "Bearer test-token"}
			}),
		)
		f.Do(context.Background(), newTestTask(server.URL))

		if got, _ := gotAuth.Load().(string); got != "Bearer test-token" {
			t.Errorf("expected site header to be sent, got %q", got)
		}
	})
}

// TestRetryPolicyBackoff tests backoff growth and bounds.
func TestRetryPolicyBackoff(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxAttempts: 5, BaseBackoff: 100 * time.Millisecond, MaxBackoff: 400 * time.Millisecond}

	for attempt := 1; attempt <= 5; attempt++ {
		got := p.Backoff(attempt)
		if got < 0 {
			t.Errorf("attempt %d: negative backoff %v", attempt, got)
		}
		// The jittered value never exceeds the capped exponential.
		if got > 400*time.Millisecond {
			t.Errorf("attempt %d: backoff %v exceeds cap", attempt, got)
		}
	}

	// First retry waits at least half the base.
	if got := p.Backoff(1); got < 50*time.Millisecond {
		t.Errorf("first backoff %v below jitter floor", got)
	}
}

// TestNewClient tests client construction.
func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("plain client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(10*time.Second, "")
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if client.Timeout != 10*time.Second {
			t.Errorf("expected 10s timeout, got %v", client.Timeout)
		}
		if client.Jar == nil {
			t.Error("expected a cookie jar")
		}
	})

	t.Run("invalid proxy address rejected", func(t *testing.T) {
		t.Parallel()

		for _, addr := range []string{"noport", ":9050", "host:notanumber", "host:70000"} {
			if _, err := NewClient(time.Second, addr); err == nil {
				t.Errorf("expected error for proxy address %q", addr)
			}
		}
	})

	t.Run("valid proxy address accepted", func(t *testing.T) {
		t.Parallel()

		if _, err := NewClient(time.Second, "127.0.0.1:9050"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
