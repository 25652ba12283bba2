package frontier

import (
	"container/heap"
	"context"
	"errors"
	"sync"

	"github.com/syllime/sylli-crawl/internal/model"
)

// ErrFrontierClosed is returned by Pop once the frontier has been
// closed and fully drained, and by Push after Close. It is the normal
// end-of-crawl signal for workers, not a failure.
var ErrFrontierClosed = errors.New("frontier: closed")

// Frontier holds pending fetch tasks ordered by priority, with
// round-robin rotation across hosts as the tie-breaker.
//
// Ordering policy: among all queued tasks, the lowest priority value
// wins (lower depth = higher priority by default). When several hosts'
// best tasks share that priority, hosts take turns, so a single large
// host cannot monopolize the workers while others starve.
//
// Design decision: We keep one min-heap per host plus a rotation ring
// of host names rather than a single global heap because the
// tie-breaking rule is "round-robin across distinct hosts", which a
// single heap cannot express without encoding rotation state into the
// comparison function.
type Frontier struct {
	mu sync.Mutex

	// hosts maps a hostname to its pending task heap.
	hosts map[string]*hostQueue

	// ring is the rotation order of hosts that currently have pending
	// tasks. cursor points at the host whose turn is next.
	ring   []string
	cursor int

	// seq is a monotonic counter giving FIFO order within one priority.
	seq uint64

	// pending is the total number of queued tasks across all hosts.
	pending int

	// closed is set by Close; after that Push is rejected and Pop
	// returns ErrFrontierClosed once pending reaches zero.
	closed bool

	// wake is closed and replaced whenever state changes, waking every
	// blocked Pop so it can re-examine the queue.
	wake chan struct{}
}

// New creates an empty, open frontier.
func New() *Frontier {
	return &Frontier{
		hosts: make(map[string]*hostQueue),
		wake:  make(chan struct{}),
	}
}

// Push enqueues a task. It fails with ErrFrontierClosed after Close.
//
// Push never blocks: the frontier is unbounded. Backpressure is applied
// upstream by the page budget and the seen-set, which cap how many
// tasks can ever be admitted.
func (f *Frontier) Push(task model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFrontierClosed
	}

	hq, ok := f.hosts[task.Host]
	if !ok {
		hq = &hostQueue{}
		f.hosts[task.Host] = hq
	}
	if hq.Len() == 0 {
		f.ring = append(f.ring, task.Host)
	}

	f.seq++
	heap.Push(hq, queuedTask{task: task, seq: f.seq})
	f.pending++

	f.broadcast()
	return nil
}

// Pop removes and returns the next task according to the ordering
// policy. It blocks until a task is available, the frontier is closed
// and drained (ErrFrontierClosed), or the context is cancelled.
func (f *Frontier) Pop(ctx context.Context) (model.Task, error) {
	f.mu.Lock()
	for {
		if f.pending > 0 {
			task := f.popLocked()
			f.mu.Unlock()
			return task, nil
		}
		if f.closed {
			f.mu.Unlock()
			return model.Task{}, ErrFrontierClosed
		}

		// Snapshot the wake channel before sleeping so a Push or Close
		// that lands between unlock and select still wakes us.
		wake := f.wake
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return model.Task{}, ctx.Err()
		case <-wake:
		}
		f.mu.Lock()
	}
}

// popLocked selects and removes the next task. Caller holds f.mu and
// has verified pending > 0.
func (f *Frontier) popLocked() model.Task {
	// Find the best priority among all host-queue heads, preferring
	// the host closest to the cursor in rotation order.
	bestIdx := -1
	bestPriority := 0
	for offset := range f.ring {
		idx := (f.cursor + offset) % len(f.ring)
		head := f.hosts[f.ring[idx]].head()
		if bestIdx == -1 || head.task.Priority < bestPriority {
			bestIdx = idx
			bestPriority = head.task.Priority
		}
	}

	host := f.ring[bestIdx]
	hq := f.hosts[host]
	item := heap.Pop(hq).(queuedTask)
	f.pending--

	if hq.Len() == 0 {
		// Host is drained; drop it from the rotation.
		f.ring = append(f.ring[:bestIdx], f.ring[bestIdx+1:]...)
		if len(f.ring) == 0 {
			f.cursor = 0
		} else {
			f.cursor = bestIdx % len(f.ring)
		}
	} else {
		// Advance past the served host so its neighbors get the next turn.
		f.cursor = (bestIdx + 1) % len(f.ring)
	}

	return item.task
}

// Close signals that no more tasks will be pushed. Blocked Pop calls
// drain the remaining tasks and then return ErrFrontierClosed. Close is
// idempotent.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	f.broadcast()
}

// Abort closes the frontier and discards every queued task. Blocked
// Pop calls return ErrFrontierClosed immediately. Used when a budget
// runs out mid-crawl: in-flight fetches finish, queued ones never
// start. Abort is idempotent.
func (f *Frontier) Abort() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.hosts = make(map[string]*hostQueue)
	f.ring = nil
	f.cursor = 0
	f.pending = 0
	f.broadcast()
}

// Len returns the number of currently queued tasks.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// broadcast wakes every blocked Pop. Caller holds f.mu.
func (f *Frontier) broadcast() {
	close(f.wake)
	f.wake = make(chan struct{})
}

// queuedTask pairs a task with its insertion sequence number so that
// equal-priority tasks within one host keep FIFO order.
type queuedTask struct {
	task model.Task
	seq  uint64
}

// hostQueue is a min-heap of one host's pending tasks, ordered by
// priority then insertion order.
type hostQueue []queuedTask

func (h hostQueue) Len() int { return len(h) }

func (h hostQueue) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority < h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h hostQueue) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *hostQueue) Push(x any) { *h = append(*h, x.(queuedTask)) }

func (h *hostQueue) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// head returns the lowest-priority item without removing it. Caller
// must ensure the queue is non-empty.
func (h *hostQueue) head() queuedTask { return (*h)[0] }
