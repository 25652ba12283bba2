package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/syllime/sylli-crawl/internal/fetch"
	"github.com/syllime/sylli-crawl/internal/frontier"
	"github.com/syllime/sylli-crawl/internal/model"
	"github.com/syllime/sylli-crawl/internal/politeness"
	"github.com/syllime/sylli-crawl/internal/processor"
	"github.com/syllime/sylli-crawl/internal/urlnorm"
)

// ErrNoSeeds is returned when no seed URL survives normalization and
// admission, so there is nothing to crawl.
var ErrNoSeeds = errors.New("engine: no usable seed URLs")

// Engine orchestrates one crawl run: it seeds the frontier, drives the
// worker pool, routes results through the processor, enforces the page
// and wall-clock budgets, and assembles the final report.
//
// Completion detection works by outstanding-task accounting: every task
// admitted to the frontier increments a counter, every fully processed
// result decrements it. When the counter reaches zero there can be no
// queued task, no in-flight fetch, and no unprocessed result, so the
// frontier is closed and the workers drain out.
//
// Design decision: We detect completion with a counter rather than
// polling frontier length because:
//  1. An empty frontier does not mean the crawl is done; an in-flight
//     fetch may still discover new links
//  2. The counter gives an exact quiescence condition with no polling
//  3. Both budgets reuse the same drain path, so there is one way to
//     stop
type Engine struct {
	seen      *frontier.SeenSet
	frontier  *frontier.Frontier
	limiter   *politeness.Limiter
	fetcher   *fetch.Fetcher
	processor *processor.Processor

	// robots is nil when the operator chose to ignore robots.txt.
	robots *politeness.RobotsCache

	// workers is the fetch pool size.
	workers int

	// maxPages caps completed fetches; 0 means unlimited.
	maxPages int

	// budget caps wall-clock runtime; 0 means unlimited.
	budget time.Duration

	logger *slog.Logger

	// resultHook, when set, observes every consumed result after
	// processing. Used by the CLI to persist fetched pages.
	resultHook func(result *model.FetchResult, resource *model.Resource)

	mu          sync.Mutex
	state       State
	outstanding int
	fetched     int
	budgetHit   bool

	// report is built by the collector goroutine only; it needs no
	// locking of its own.
	report *model.CrawlReport
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the fetch pool size.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithMaxPages caps the number of completed fetches.
func WithMaxPages(n int) Option {
	return func(e *Engine) {
		e.maxPages = n
	}
}

// WithBudget caps the wall-clock runtime of the crawl.
func WithBudget(d time.Duration) Option {
	return func(e *Engine) {
		e.budget = d
	}
}

// WithRobots enables robots.txt checking for the worker pool.
func WithRobots(rc *politeness.RobotsCache) Option {
	return func(e *Engine) {
		e.robots = rc
	}
}

// WithResultHook registers a callback invoked for every consumed fetch
// result after processing. The resource is nil for failed fetches. The
// hook runs on the collector goroutine and must not block.
func WithResultHook(hook func(result *model.FetchResult, resource *model.Resource)) Option {
	return func(e *Engine) {
		e.resultHook = hook
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an engine from its components. The seen-set must be the
// same instance the processor claims against, otherwise seeds and
// discovered links would race on different dedup state.
func New(
	seen *frontier.SeenSet,
	f *frontier.Frontier,
	limiter *politeness.Limiter,
	fetcher *fetch.Fetcher,
	proc *processor.Processor,
	opts ...Option,
) *Engine {
	e := &Engine{
		seen:      seen,
		frontier:  f,
		limiter:   limiter,
		fetcher:   fetcher,
		processor: proc,
		workers:   4,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Run executes one crawl over the given seeds and blocks until the
// run terminates. The returned report is complete even when an error
// is returned alongside it.
func (e *Engine) Run(ctx context.Context, seeds []string) (*model.CrawlReport, error) {
	e.setState(StateSeeding)
	e.report = model.NewCrawlReport(seeds)

	if admitted := e.seed(seeds); admitted == 0 {
		e.finish()
		return e.report, ErrNoSeeds
	}
	e.setState(StateRunning)

	if e.budget > 0 {
		timer := time.AfterFunc(e.budget, func() {
			e.logger.Info("wall-clock budget exhausted", "budget", e.budget)
			e.drain(true)
		})
		defer timer.Stop()
	}

	results := make(chan *model.FetchResult, e.workers)
	poolOpts := []fetch.PoolOption{fetch.WithPoolLogger(e.logger)}
	if e.robots != nil {
		poolOpts = append(poolOpts, fetch.WithRobots(e.robots))
	}
	pool := fetch.NewPool(e.workers, e.frontier, e.limiter, e.fetcher, results, poolOpts...)

	poolErr := make(chan error, 1)
	go func() {
		poolErr <- pool.Run(ctx)
		close(results)
	}()

	for result := range results {
		e.collect(result)
	}
	err := <-poolErr

	e.finish()
	return e.report, err
}

// seed normalizes, claims, and enqueues the seed URLs at depth zero.
// Returns how many were admitted; malformed or duplicate seeds are
// logged and skipped.
func (e *Engine) seed(seeds []string) int {
	admitted := 0
	for _, seed := range seeds {
		key, err := urlnorm.Normalize(seed)
		if err != nil {
			e.logger.Warn("skipping malformed seed", "seed", seed, "error", err)
			continue
		}
		host, err := urlnorm.Host(seed)
		if err != nil || host == "" {
			e.logger.Warn("skipping seed without host", "seed", seed)
			continue
		}
		if !e.seen.TryClaim(key) {
			e.logger.Debug("skipping duplicate seed", "seed", seed)
			continue
		}
		if err := e.frontier.Push(model.NewTask(key, seed, host, 0)); err != nil {
			break
		}
		e.track(1)
		admitted++
	}
	return admitted
}

// collect consumes one fetch result: bookkeeping, processing, child
// admission, and budget enforcement. It runs on the single collector
// goroutine inside Run.
func (e *Engine) collect(result *model.FetchResult) {
	if err := e.seen.MarkDone(result.Task.Key); err != nil {
		// Invariant breach between pool and seen-set; the task still
		// counts, so keep going.
		e.logger.Error("seen-set bookkeeping failed", "url", result.Task.RawURL, "error", err)
	}

	e.mu.Lock()
	e.fetched++
	fetched := e.fetched
	e.mu.Unlock()

	resource, children := e.processor.Process(result)
	if resource != nil {
		e.report.AddResource(*resource)
	}
	if !result.Succeeded() && result.Outcome != model.OutcomeRedirect {
		e.report.AddFailure(result)
	}
	if e.resultHook != nil {
		e.resultHook(result, resource)
	}

	pushed := 0
	for _, child := range children {
		if err := e.frontier.Push(child); err != nil {
			// Frontier closed while we were processing; remaining
			// children die with the run.
			break
		}
		pushed++
	}
	e.track(pushed)

	if e.maxPages > 0 && fetched >= e.maxPages {
		e.logger.Info("page budget exhausted", "pages", fetched)
		e.drain(true)
	}

	if e.track(-1) == 0 {
		// Quiescent: nothing queued, nothing in flight, nothing left
		// to process.
		e.drain(false)
	}
}

// track adjusts the outstanding-task counter and returns its new value.
func (e *Engine) track(delta int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outstanding += delta
	return e.outstanding
}

// drain moves the engine to Draining and stops the frontier. When the
// stop is caused by a budget, queued tasks are discarded so no new
// fetch starts; a natural drain only closes the frontier, which is
// already empty at that point.
func (e *Engine) drain(budget bool) {
	e.mu.Lock()
	if e.state >= StateDraining {
		e.mu.Unlock()
		return
	}
	e.state = StateDraining
	if budget {
		e.budgetHit = true
	}
	e.mu.Unlock()

	e.logger.Debug("engine state change", "state", StateDraining.String())
	if budget {
		e.frontier.Abort()
		return
	}
	e.frontier.Close()
}

// finish moves the engine to Terminated and seals the report.
func (e *Engine) finish() {
	e.setState(StateTerminated)

	e.mu.Lock()
	fetched := e.fetched
	budgetHit := e.budgetHit
	e.mu.Unlock()

	e.report.FinishedAt = time.Now()
	e.report.State = StateTerminated.String()
	e.report.PagesFetched = fetched
	e.report.BudgetExhausted = budgetHit

	e.logger.Info("crawl finished",
		"pages", fetched,
		"resources", e.report.SucceededCount(),
		"failures", e.report.FailedCount(),
		"budget_exhausted", budgetHit,
		"elapsed", e.report.Elapsed(),
	)
}

// setState advances the lifecycle state, never backwards.
func (e *Engine) setState(s State) {
	e.mu.Lock()
	if s > e.state {
		e.state = s
	}
	e.mu.Unlock()
	e.logger.Debug("engine state change", "state", s.String())
}
