package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/syllime/sylli-crawl/internal/fetch"
	"github.com/syllime/sylli-crawl/internal/frontier"
	"github.com/syllime/sylli-crawl/internal/politeness"
	"github.com/syllime/sylli-crawl/internal/processor"
)

// countingMux is a test HTTP handler that records how often each path
// was requested.
type countingMux struct {
	mu    sync.Mutex
	hits  map[string]int
	pages map[string]string
}

func newCountingMux(pages map[string]string) *countingMux {
	return &countingMux{hits: make(map[string]int), pages: pages}
}

func (m *countingMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.hits[r.URL.Path]++
	m.mu.Unlock()

	body, ok := m.pages[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func (m *countingMux) count(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[path]
}

// newTestEngine wires an engine against a test server with the given
// depth and extra options.
func newTestEngine(t *testing.T, server *httptest.Server, maxDepth int, opts ...Option) *Engine {
	t.Helper()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("bad server url: %v", err)
	}

	seen := frontier.NewSeenSet()
	f := frontier.New()
	limiter := politeness.NewLimiter(0, 4, 8)
	fetcher := fetch.NewFetcher(server.Client(), fetch.WithRetryPolicy(fetch.RetryPolicy{
		MaxAttempts: 1,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}))
	proc := processor.New(seen, maxDepth, processor.WithAllowedHosts([]string{u.Hostname()}))

	return New(seen, f, limiter, fetcher, proc, opts...)
}

// TestEngineRun tests a complete crawl of a small linked site.
func TestEngineRun(t *testing.T) {
	t.Parallel()

	mux := newCountingMux(map[string]string{
		"/":  `<html><title>Index</title><body><a href="/a">a</a> <a href="/b">b</a></body></html>`,
		"/a": `<html><title>Page A</title><body><a href="/b">b again</a> <a href="/">home</a></body></html>`,
		"/b": `<html><title>Page B</title><body></body></html>`,
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	e := newTestEngine(t, server, 3, WithWorkers(2))
	report, err := e.Run(context.Background(), []string{server.URL + "/"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if e.State() != StateTerminated {
		t.Errorf("expected terminated state, got %s", e.State())
	}
	if report.State != "terminated" {
		t.Errorf("report state = %q, want terminated", report.State)
	}
	if report.PagesFetched != 3 {
		t.Errorf("expected 3 pages fetched, got %d", report.PagesFetched)
	}
	if report.SucceededCount() != 3 {
		t.Errorf("expected 3 resources, got %d", report.SucceededCount())
	}
	if report.BudgetExhausted {
		t.Error("small crawl should not exhaust any budget")
	}

	// Cross-linked pages are still fetched exactly once each.
	for _, path := range []string{"/", "/a", "/b"} {
		if got := mux.count(path); got != 1 {
			t.Errorf("path %s fetched %d times, want 1", path, got)
		}
	}
}

// TestEngineDepthLimit tests that links beyond the depth limit are not
// fetched.
func TestEngineDepthLimit(t *testing.T) {
	t.Parallel()

	mux := newCountingMux(map[string]string{
		"/":     `<html><body><a href="/deep">deep</a></body></html>`,
		"/deep": `<html><body></body></html>`,
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	e := newTestEngine(t, server, 0, WithWorkers(2))
	report, err := e.Run(context.Background(), []string{server.URL + "/"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if report.PagesFetched != 1 {
		t.Errorf("expected only the seed to be fetched, got %d pages", report.PagesFetched)
	}
	if got := mux.count("/deep"); got != 0 {
		t.Errorf("over-deep page fetched %d times, want 0", got)
	}
}

// TestEnginePageBudget tests that the page budget stops the crawl.
func TestEnginePageBudget(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"/": `<html><body>
<a href="/p1">1</a><a href="/p2">2</a><a href="/p3">3</a>
<a href="/p4">4</a><a href="/p5">5</a><a href="/p6">6</a>
</body></html>`,
	}
	for _, p := range []string{"/p1", "/p2", "/p3", "/p4", "/p5", "/p6"} {
		pages[p] = `<html><body></body></html>`
	}
	mux := newCountingMux(pages)
	server := httptest.NewServer(mux)
	defer server.Close()

	const maxPages = 2
	const workers = 2
	e := newTestEngine(t, server, 3, WithWorkers(workers), WithMaxPages(maxPages))
	report, err := e.Run(context.Background(), []string{server.URL + "/"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !report.BudgetExhausted {
		t.Error("expected budget exhausted flag")
	}
	if report.PagesFetched < maxPages {
		t.Errorf("expected at least %d pages, got %d", maxPages, report.PagesFetched)
	}
	// In-flight fetches may finish after the budget trips, but no new
	// ones may start.
	if report.PagesFetched > maxPages+workers {
		t.Errorf("budget overshoot: %d pages with budget %d and %d workers",
			report.PagesFetched, maxPages, workers)
	}
}

// TestEngineWallClockBudget tests that the time budget forces draining.
func TestEngineWallClockBudget(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		// Every page links to a fresh one, so the crawl never runs dry
		// on its own.
		_, _ = w.Write([]byte(`<html><body><a href="` + r.URL.Path + `x">next</a></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	e := newTestEngine(t, server, 1000, WithWorkers(1), WithBudget(100*time.Millisecond))

	start := time.Now()
	report, err := e.Run(context.Background(), []string{server.URL + "/"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !report.BudgetExhausted {
		t.Error("expected budget exhausted flag")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("run took %v, budget was 100ms", elapsed)
	}
}

// TestEngineFailuresRecorded tests that failed fetches land in the
// report without stopping the run.
func TestEngineFailuresRecorded(t *testing.T) {
	t.Parallel()

	mux := newCountingMux(map[string]string{
		"/": `<html><body><a href="/gone">gone</a><a href="/ok">ok</a></body></html>`,
		// "/gone" missing: the mux answers 404.
		"/ok": `<html><title>OK</title><body></body></html>`,
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	e := newTestEngine(t, server, 2, WithWorkers(2))
	report, err := e.Run(context.Background(), []string{server.URL + "/"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if report.FailedCount() != 1 {
		t.Fatalf("expected 1 failure, got %d", report.FailedCount())
	}
	failure := report.Failures[0]
	if failure.StatusCode != http.StatusNotFound {
		t.Errorf("failure status = %d, want 404", failure.StatusCode)
	}
	if report.SucceededCount() != 2 {
		t.Errorf("expected 2 resources, got %d", report.SucceededCount())
	}
}

// TestEngineNoSeeds tests the empty-seed error path.
func TestEngineNoSeeds(t *testing.T) {
	t.Parallel()

	seen := frontier.NewSeenSet()
	f := frontier.New()
	limiter := politeness.NewLimiter(0, 1, 1)
	fetcher := fetch.NewFetcher(http.DefaultClient)
	proc := processor.New(seen, 1)
	e := New(seen, f, limiter, fetcher, proc)

	report, err := e.Run(context.Background(), []string{"not a url", "ftp://wrong.scheme/"})
	if !errors.Is(err, ErrNoSeeds) {
		t.Fatalf("expected ErrNoSeeds, got %v", err)
	}
	if report == nil || report.State != "terminated" {
		t.Error("even a failed run must return a sealed report")
	}
}

// TestEngineCancellation tests that cancelling the context ends the
// run promptly with a sealed report.
func TestEngineCancellation(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="` + r.URL.Path + `x">next</a></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	e := newTestEngine(t, server, 1000, WithWorkers(2))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r, err := e.Run(ctx, []string{server.URL + "/"})
		if err != nil {
			t.Errorf("cancellation should be a clean shutdown, got %v", err)
		}
		if r.State != "terminated" {
			t.Errorf("report state = %q, want terminated", r.State)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
}
