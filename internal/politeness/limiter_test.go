package politeness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestLimiterDelaySpacing tests that successive fetch starts on one
// host are spaced by at least the configured delay.
func TestLimiterDelaySpacing(t *testing.T) {
	t.Parallel()

	const delay = 50 * time.Millisecond
	const fetches = 4

	l := NewLimiter(delay, 1, 10)
	ctx := context.Background()

	start := time.Now()
	for n := 0; n < fetches; n++ {
		permit, err := l.Acquire(ctx, "slow.example.com")
		if err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		permit.Release()
	}
	elapsed := time.Since(start)

	// 4 fetches means 3 inter-fetch gaps.
	want := time.Duration(fetches-1) * delay
	if elapsed < want {
		t.Errorf("%d fetches took %v, want at least %v", fetches, elapsed, want)
	}
}

// TestLimiterHostsIndependent tests that the delay on one host does
// not slow down another host.
func TestLimiterHostsIndependent(t *testing.T) {
	t.Parallel()

	l := NewLimiter(time.Second, 1, 10)
	ctx := context.Background()

	// Consume host a's burst token.
	permitA, err := l.Acquire(ctx, "a.example.com")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	permitA.Release()

	// Host b's first fetch must not wait for host a's delay.
	start := time.Now()
	permitB, err := l.Acquire(ctx, "b.example.com")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	permitB.Release()

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("host b waited %v behind host a's delay", elapsed)
	}
}

// TestLimiterPerHostCap tests the in-flight cap per host.
func TestLimiterPerHostCap(t *testing.T) {
	t.Parallel()

	const hostCap = 2
	l := NewLimiter(0, hostCap, 100)
	ctx := context.Background()

	var inflight, peak atomic.Int64
	var wg sync.WaitGroup

	for n := 0; n < 10; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			permit, err := l.Acquire(ctx, "example.com")
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			defer permit.Release()

			n := inflight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inflight.Add(-1)
		}()
	}
	wg.Wait()

	if peak.Load() > hostCap {
		t.Errorf("in-flight peak %d exceeded per-host cap %d", peak.Load(), hostCap)
	}
}

// TestLimiterGlobalCap tests the cap across all hosts.
func TestLimiterGlobalCap(t *testing.T) {
	t.Parallel()

	const globalCap = 3
	l := NewLimiter(0, 10, globalCap)
	ctx := context.Background()

	var inflight, peak atomic.Int64
	var wg sync.WaitGroup

	hosts := []string{"a.example", "b.example", "c.example", "d.example"}
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()

			permit, err := l.Acquire(ctx, hosts[i%len(hosts)])
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			defer permit.Release()

			n := inflight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inflight.Add(-1)
		}()
	}
	wg.Wait()

	if peak.Load() > globalCap {
		t.Errorf("in-flight peak %d exceeded global cap %d", peak.Load(), globalCap)
	}
}

// TestLimiterCancellation tests that a blocked Acquire returns when
// the context is cancelled and does not leak slots.
func TestLimiterCancellation(t *testing.T) {
	t.Parallel()

	l := NewLimiter(0, 1, 1)
	ctx := context.Background()

	// Occupy the only slot.
	held, err := l.Acquire(ctx, "example.com")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		_, err := l.Acquire(cancelCtx, "example.com")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Acquire did not return after cancellation")
	}

	// The cancelled acquire must not have consumed the slot.
	held.Release()
	permit, err := l.Acquire(ctx, "example.com")
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	permit.Release()
}

// TestPermitReleaseIdempotent tests that double-release cannot free a
// slot twice.
func TestPermitReleaseIdempotent(t *testing.T) {
	t.Parallel()

	l := NewLimiter(0, 1, 1)
	ctx := context.Background()

	permit, err := l.Acquire(ctx, "example.com")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	permit.Release()
	permit.Release()

	// If the double release corrupted the accounting, this second
	// acquire/release cycle would panic or hang.
	again, err := l.Acquire(ctx, "example.com")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	again.Release()

	if got := l.InFlight("example.com"); got != 0 {
		t.Errorf("expected 0 in flight, got %d", got)
	}
}

// TestLimiterDelayWaitFreesGlobalSlot tests that a worker waiting out
// a slow host's delay does not hold a global slot, so fetches on other
// hosts proceed.
func TestLimiterDelayWaitFreesGlobalSlot(t *testing.T) {
	t.Parallel()

	const slowDelay = 400 * time.Millisecond
	l := NewLimiter(0, 1, 1, WithHostDelay("slow.example.com", slowDelay))
	ctx := context.Background()

	// Consume the slow host's burst token.
	first, err := l.Acquire(ctx, "slow.example.com")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	first.Release()

	// This acquire waits ~slowDelay for the next token.
	slowCh := make(chan error, 1)
	go func() {
		permit, err := l.Acquire(ctx, "slow.example.com")
		if err == nil {
			permit.Release()
		}
		slowCh <- err
	}()

	// Give the goroutine time to enter its delay wait.
	time.Sleep(50 * time.Millisecond)

	// With only one global slot, the fast host can proceed only if the
	// slow waiter is not holding it.
	start := time.Now()
	fast, err := l.Acquire(ctx, "fast.example.com")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	fast.Release()

	if elapsed := time.Since(start); elapsed > slowDelay/2 {
		t.Errorf("fast host blocked %v behind the slow host's delay", elapsed)
	}

	if err := <-slowCh; err != nil {
		t.Fatalf("slow host acquire failed: %v", err)
	}
}

// TestLimiterHostDelayOverride tests per-site delay overrides.
func TestLimiterHostDelayOverride(t *testing.T) {
	t.Parallel()

	l := NewLimiter(time.Second, 1, 10, WithHostDelay("fast.example.com", 0))
	ctx := context.Background()

	start := time.Now()
	for n := 0; n < 3; n++ {
		permit, err := l.Acquire(ctx, "fast.example.com")
		if err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		permit.Release()
	}

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("override host still throttled: %v", elapsed)
	}
}
