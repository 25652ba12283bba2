package frontier

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNeverClaimed is returned when MarkDone is called for a key that
// was never admitted through TryClaim. This is an internal invariant
// breach (a protocol violation between components), fatal to the
// affected task but never to the whole run.
var ErrNeverClaimed = errors.New("seen-set: key was never claimed")

// SeenStatus is the lifecycle state of a canonical key in the seen-set.
// A key moves pending -> done exactly once and never reverts.
type SeenStatus int

const (
	// StatusPending means the key has been scheduled but its fetch has
	// not completed yet.
	StatusPending SeenStatus = iota

	// StatusDone means the key's fetch completed (successfully or not).
	StatusDone
)

// SeenSet records every canonical key ever admitted into the crawl.
//
// TryClaim is the sole admission gate to the frontier: a key enters the
// crawl if and only if TryClaim returns true, exactly once, no matter
// how many workers discover the same URL concurrently. That atomicity
// is the primary deduplication correctness property of the engine.
//
// Design decision: We use a mutex-guarded map rather than sync.Map
// because:
//  1. The claim operation is a read-modify-write, which sync.Map
//     cannot express atomically without LoadOrStore gymnastics
//  2. Contention is low; workers spend their time in network waits
//  3. A plain map keeps Snapshot and Len trivially correct
type SeenSet struct {
	mu   sync.Mutex
	keys map[string]SeenStatus
}

// NewSeenSet creates an empty seen-set.
func NewSeenSet() *SeenSet {
	return &SeenSet{keys: make(map[string]SeenStatus)}
}

// TryClaim atomically admits a key. It returns true and marks the key
// pending only if the key has never been seen before; otherwise it
// returns false and changes nothing.
func (s *SeenSet) TryClaim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.keys[key]; seen {
		return false
	}
	s.keys[key] = StatusPending
	return true
}

// MarkDone transitions a claimed key from pending to done. Marking an
// already-done key is a no-op; marking a key that was never claimed
// fails with ErrNeverClaimed.
func (s *SeenSet) MarkDone(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, seen := s.keys[key]
	if !seen {
		return fmt.Errorf("%w: %s", ErrNeverClaimed, key)
	}
	if status == StatusDone {
		return nil
	}
	s.keys[key] = StatusDone
	return nil
}

// Preload claims a set of keys as already done. This is used when
// resuming from the crawl database so previously fetched pages are not
// fetched again. Keys that were already present keep their status.
func (s *SeenSet) Preload(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if _, seen := s.keys[key]; !seen {
			s.keys[key] = StatusDone
		}
	}
}

// Status returns the status of a key and whether it has been seen.
func (s *SeenSet) Status(key string) (SeenStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, seen := s.keys[key]
	return status, seen
}

// Len returns the number of keys ever admitted.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// DoneKeys returns every key currently marked done, in no particular
// order. Used to persist resume state at the end of a run.
func (s *SeenSet) DoneKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := make([]string, 0, len(s.keys))
	for key, status := range s.keys {
		if status == StatusDone {
			done = append(done, key)
		}
	}
	return done
}
