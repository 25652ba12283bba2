package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/syllime/sylli-crawl/internal/frontier"
	"github.com/syllime/sylli-crawl/internal/model"
	"github.com/syllime/sylli-crawl/internal/politeness"
)

// serverTask builds a task for a path on the given test server.
func serverTask(t *testing.T, server *httptest.Server, path string, depth int) model.Task {
	t.Helper()

	raw := server.URL + path
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("bad test url: %v", err)
	}
	return model.NewTask(raw, raw, u.Hostname(), depth)
}

// TestPoolDrainsFrontier tests that the pool fetches every queued task
// and finishes when the frontier closes.
func TestPoolDrainsFrontier(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("page " + r.URL.Path))
	}))
	defer server.Close()

	f := frontier.New()
	const tasks = 5
	for i := 0; i < tasks; i++ {
		if err := f.Push(serverTask(t, server, "/p"+string(rune('a'+i)), 0)); err != nil {
			t.Fatalf("push failed: %v", err)
		}
	}
	f.Close()

	results := make(chan *model.FetchResult, tasks)
	limiter := politeness.NewLimiter(0, 4, 8)
	fetcher := NewFetcher(server.Client(), WithRetryPolicy(fastRetry(1)))

	pool := NewPool(3, f, limiter, fetcher, results)
	if err := pool.Run(context.Background()); err != nil {
		t.Fatalf("pool run failed: %v", err)
	}
	close(results)

	var count int
	for result := range results {
		count++
		if !result.Succeeded() {
			t.Errorf("unexpected failure for %s: %v", result.Task.RawURL, result.Err)
		}
	}
	if count != tasks {
		t.Errorf("expected %d results, got %d", tasks, count)
	}
}

// TestPoolReportsFailures tests that failed fetches surface as results
// rather than stopping the pool.
func TestPoolReportsFailures(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := frontier.New()
	for _, path := range []string{"/good", "/bad"} {
		if err := f.Push(serverTask(t, server, path, 0)); err != nil {
			t.Fatalf("push failed: %v", err)
		}
	}
	f.Close()

	results := make(chan *model.FetchResult, 2)
	limiter := politeness.NewLimiter(0, 2, 4)
	fetcher := NewFetcher(server.Client(), WithRetryPolicy(fastRetry(1)))

	pool := NewPool(2, f, limiter, fetcher, results)
	if err := pool.Run(context.Background()); err != nil {
		t.Fatalf("pool run failed: %v", err)
	}
	close(results)

	var succeeded, failed int
	for result := range results {
		if result.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	if succeeded != 1 || failed != 1 {
		t.Errorf("expected 1 success and 1 failure, got %d/%d", succeeded, failed)
	}
}

// TestPoolRobotsBlocking tests that disallowed tasks are reported as
// permanent failures without being fetched.
func TestPoolRobotsBlocking(t *testing.T) {
	t.Parallel()

	var pageFetched bool
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		pageFetched = true
		_, _ = w.Write([]byte("should not be reached"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := frontier.New()
	if err := f.Push(serverTask(t, server, "/blocked", 0)); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	f.Close()

	results := make(chan *model.FetchResult, 1)
	limiter := politeness.NewLimiter(0, 1, 2)
	fetcher := NewFetcher(server.Client(), WithRetryPolicy(fastRetry(1)))
	robots := politeness.NewRobotsCache(server.Client(), "sylli-crawl")

	pool := NewPool(1, f, limiter, fetcher, results, WithRobots(robots))
	if err := pool.Run(context.Background()); err != nil {
		t.Fatalf("pool run failed: %v", err)
	}
	close(results)

	result := <-results
	if result == nil {
		t.Fatal("expected a result for the blocked task")
	}
	if result.Outcome != model.OutcomePermanent {
		t.Errorf("expected permanent outcome, got %s", result.Outcome)
	}
	if !errors.Is(result.Err, errRobotsDisallowed) {
		t.Errorf("expected robots error, got %v", result.Err)
	}
	if pageFetched {
		t.Error("blocked page must not be fetched")
	}
}

// TestPoolCancellation tests that cancelling the context stops the
// pool promptly even with an open frontier.
func TestPoolCancellation(t *testing.T) {
	t.Parallel()

	f := frontier.New() // never closed, never filled

	results := make(chan *model.FetchResult, 1)
	limiter := politeness.NewLimiter(0, 1, 2)
	fetcher := NewFetcher(http.DefaultClient, WithRetryPolicy(fastRetry(1)))
	pool := NewPool(2, f, limiter, fetcher, results)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- pool.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("cancellation should be a clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancellation")
	}
}
