package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/syllime/sylli-crawl/internal/frontier"
	"github.com/syllime/sylli-crawl/internal/model"
	"github.com/syllime/sylli-crawl/internal/politeness"
)

// errRobotsDisallowed marks tasks refused by a host's robots.txt.
var errRobotsDisallowed = errors.New("blocked by robots.txt")

// Pool runs a fixed number of fetch workers against the frontier.
//
// Each worker loops: pop a task, check robots policy, acquire a
// politeness permit for the task's host, fetch with the bounded
// timeout of the shared client, release the permit, emit the result.
// A worker blocked on one slow host's permit never holds up workers
// serving other hosts, because permits are per host.
//
// Design decision: We run the workers under errgroup (rather than
// raw goroutines plus a WaitGroup) for the same reason the batch
// scanners in our earlier tooling did: it ties worker lifetime to one
// context and gives Run a single place to wait and collect a failure.
type Pool struct {
	// workers is the pool size, fixed for the run.
	workers int

	// frontier supplies tasks; the pool finishes when it drains.
	frontier *frontier.Frontier

	// limiter is the politeness gate consulted before every fetch.
	limiter *politeness.Limiter

	// robots is the robots.txt policy cache, nil when the operator
	// chose to ignore robots.
	robots *politeness.RobotsCache

	// fetcher performs the actual HTTP work.
	fetcher *Fetcher

	// results receives one FetchResult per consumed task.
	results chan<- *model.FetchResult

	// logger is used for per-task progress logging.
	logger *slog.Logger
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithRobots enables robots.txt checking with the given cache.
func WithRobots(rc *politeness.RobotsCache) PoolOption {
	return func(p *Pool) {
		p.robots = rc
	}
}

// WithPoolLogger sets a custom logger for the pool.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates a worker pool of the given size. Results for every
// consumed task, failed or not, are delivered on the results channel;
// the caller owns (and eventually closes) that channel.
func NewPool(
	workers int,
	f *frontier.Frontier,
	limiter *politeness.Limiter,
	fetcher *Fetcher,
	results chan<- *model.FetchResult,
	opts ...PoolOption,
) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		workers:  workers,
		frontier: f,
		limiter:  limiter,
		fetcher:  fetcher,
		results:  results,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Run starts the workers and blocks until the frontier is closed and
// drained or the context is cancelled. It returns nil on a normal
// drain; context cancellation is a normal shutdown, not an error.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < p.workers; i++ {
		i := i
		g.Go(func() error {
			return p.workerLoop(ctx, i)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker pool: %w", err)
	}
	return nil
}

// workerLoop is the life of one worker.
func (p *Pool) workerLoop(ctx context.Context, id int) error {
	for {
		task, err := p.frontier.Pop(ctx)
		if err != nil {
			// Closed-and-drained and cancellation are both normal
			// ends of a worker's life.
			if errors.Is(err, frontier.ErrFrontierClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		result := p.fetchTask(ctx, task)
		if result == nil {
			// Cancelled mid-task; the task dies with the run.
			return nil
		}

		select {
		case p.results <- result:
		case <-ctx.Done():
			return nil
		}

		p.logger.Debug("task finished",
			"worker", id,
			"url", task.RawURL,
			"outcome", result.Outcome.String(),
			"status", result.StatusCode,
			"attempts", result.Attempts,
		)
	}
}

// fetchTask runs one task through robots, the politeness gate, and the
// fetcher. Returns nil only when the context was cancelled before a
// result could be produced.
func (p *Pool) fetchTask(ctx context.Context, task model.Task) *model.FetchResult {
	if p.robots != nil && !p.robots.Allowed(ctx, task.RawURL) {
		return &model.FetchResult{
			Task:     task,
			Outcome:  model.OutcomePermanent,
			Err:      errRobotsDisallowed,
			Attempts: 0,
		}
	}

	permit, err := p.limiter.Acquire(ctx, task.Host)
	if err != nil {
		return nil
	}
	// Release on every exit path; the fetcher cannot panic past this.
	defer permit.Release()

	return p.fetcher.Do(ctx, task)
}
