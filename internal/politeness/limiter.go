package politeness

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// hostState is the per-host politeness bookkeeping: the token bucket
// spacing fetch starts and the in-flight slot channel.
//
// hostState is owned exclusively by the Limiter. No other component
// reads or writes it; everything funnels through Acquire/Release.
type hostState struct {
	// limiter spaces fetch starts by at least the configured delay.
	limiter *rate.Limiter

	// inflight holds one token per running fetch on this host. Its
	// capacity is the per-host concurrency cap.
	inflight chan struct{}
}

// Limiter is the politeness gate every fetch passes through. It
// enforces three limits:
//
//	(a) a minimum inter-fetch delay per host (token bucket)
//	(b) a maximum number of concurrent in-flight fetches per host
//	(c) a global maximum of concurrent fetches across all hosts
//
// Design decision: We use golang.org/x/time/rate for (a) rather than
// tracking last-fetch timestamps by hand because its Wait method
// integrates delay, burst handling, and context cancellation in one
// call. (b) is a buffered channel per host and (c) a weighted
// semaphore, so every blocking acquisition honors the same context.
type Limiter struct {
	// delay is the default minimum time between fetch starts per host.
	delay time.Duration

	// jitter, when positive, adds a random wait of up to this duration
	// on top of the base delay. Uniform request spacing is an easy
	// automation fingerprint; the jitter breaks it up.
	jitter time.Duration

	// perHost is the in-flight cap per host.
	perHost int

	// global caps in-flight fetches across all hosts.
	global *semaphore.Weighted

	// overrides maps hostnames to host-specific delays from the
	// site configuration.
	overrides map[string]time.Duration

	mu    sync.Mutex
	hosts map[string]*hostState
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithJitter adds a random extra wait of up to d before each fetch.
func WithJitter(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.jitter = d
		}
	}
}

// WithHostDelay overrides the base delay for one host.
func WithHostDelay(host string, d time.Duration) Option {
	return func(l *Limiter) {
		if d >= 0 {
			l.overrides[host] = d
		}
	}
}

// NewLimiter creates a Limiter with the given base per-host delay,
// per-host in-flight cap, and global in-flight cap.
func NewLimiter(delay time.Duration, perHost, global int, opts ...Option) *Limiter {
	if perHost < 1 {
		perHost = 1
	}
	if global < 1 {
		global = 1
	}

	l := &Limiter{
		delay:     delay,
		perHost:   perHost,
		global:    semaphore.NewWeighted(int64(global)),
		overrides: make(map[string]time.Duration),
		hosts:     make(map[string]*hostState),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Permit is the release handle returned by Acquire. Release must be
// called exactly once on every exit path; it is idempotent so a
// deferred Release combined with an explicit one cannot leak or
// double-free a slot.
type Permit struct {
	once    sync.Once
	release func()
}

// Release returns the permit's concurrency slots. Safe to call more
// than once; only the first call has an effect.
func (p *Permit) Release() {
	p.once.Do(p.release)
}

// Acquire blocks until a fetch on the given host is permitted, then
// returns the release handle. It respects context cancellation at
// every blocking point and never leaks a slot on error.
//
// The global slot is taken last, after the host's delay and jitter have
// been waited out. Waiting out a long per-host delay while holding a
// global slot would let one slow host starve fetches on unrelated
// hosts. The delay still holds: the wait sits between the token grant
// and the fetch start, and the global acquisition can only push the
// start later.
func (l *Limiter) Acquire(ctx context.Context, host string) (*Permit, error) {
	state := l.hostState(host)

	// Per-host in-flight cap.
	select {
	case state.inflight <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	releaseHost := func() { <-state.inflight }

	// Inter-fetch delay. The token is reserved here, so successive
	// fetch starts on this host are spaced by at least the delay.
	if err := state.limiter.Wait(ctx); err != nil {
		releaseHost()
		return nil, err
	}

	// Politeness jitter on top of the base delay.
	if l.jitter > 0 {
		wait := time.Duration(rand.Int63n(int64(l.jitter)))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			releaseHost()
			return nil, ctx.Err()
		}
	}

	// Global cap, only now that this fetch is ready to start.
	if err := l.global.Acquire(ctx, 1); err != nil {
		releaseHost()
		return nil, err
	}

	return &Permit{release: func() {
		l.global.Release(1)
		releaseHost()
	}}, nil
}

// hostState returns the state for a host, creating it on first use.
func (l *Limiter) hostState(host string) *hostState {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.hosts[host]
	if !ok {
		delay := l.delay
		if override, set := l.overrides[host]; set {
			delay = override
		}

		limit := rate.Inf
		if delay > 0 {
			limit = rate.Every(delay)
		}

		state = &hostState{
			// Burst 1: the first fetch starts immediately, every later
			// one waits out the delay.
			limiter:  rate.NewLimiter(limit, 1),
			inflight: make(chan struct{}, l.perHost),
		}
		l.hosts[host] = state
	}
	return state
}

// InFlight reports the number of running fetches on a host. Intended
// for tests and diagnostics.
func (l *Limiter) InFlight(host string) int {
	l.mu.Lock()
	state, ok := l.hosts[host]
	l.mu.Unlock()
	if !ok {
		return 0
	}
	return len(state.inflight)
}
