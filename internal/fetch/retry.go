package fetch

import (
	"math/rand"
	"time"
)

// RetryPolicy decides how transient fetch failures are retried.
//
// Design decision: The policy is plain data consumed by an explicit
// loop in the fetcher rather than a callback-driven retrier because
// the worker needs to interleave retries with context checks and
// attempt accounting, and a tiny amount of data plus one Backoff
// method expresses that without indirection.
type RetryPolicy struct {
	// MaxAttempts is the total number of fetch attempts, including
	// the first one. Values below 1 are treated as 1.
	MaxAttempts int

	// BaseBackoff is the wait before the first retry. Each further
	// retry doubles it.
	BaseBackoff time.Duration

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy returns the retry behavior used when the
// configuration does not override it: three attempts with 1s, 2s
// backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// Attempts returns the effective attempt budget.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff returns how long to wait before the given retry. attempt is
// 1-based: attempt 1 is the wait after the first failure. The result
// is jittered by up to half itself so retries from many workers do not
// land in lockstep.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	backoff := p.BaseBackoff
	for n := 0; n < attempt-1; n++ {
		backoff *= 2
		if p.MaxBackoff > 0 && backoff >= p.MaxBackoff {
			backoff = p.MaxBackoff
			break
		}
	}
	if backoff <= 0 {
		return 0
	}

	return backoff/2 + time.Duration(rand.Int63n(int64(backoff/2+1)))
}
