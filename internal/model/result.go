package model

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"
)

// Outcome classifies how a fetch attempt ended.
//
// Design decision: We use tagged result variants rather than sentinel
// errors for control flow because:
//  1. The retry policy is a pure function of the outcome
//  2. Workers can emit failed results without unwinding the stack
//  3. The aggregated report needs the classification anyway
type Outcome int

const (
	// OutcomeSuccess means the page was fetched with a 2xx status.
	OutcomeSuccess Outcome = iota

	// OutcomeRedirect means the server answered with a 3xx status that
	// the client did not follow (e.g. redirect loop or limit reached).
	OutcomeRedirect

	// OutcomeTransient means the attempt failed in a way that may
	// succeed on retry: timeout, connection reset, 429, or 5xx.
	OutcomeTransient

	// OutcomePermanent means the failure is terminal: 4xx status,
	// malformed content, or the retry budget was exhausted.
	OutcomePermanent
)

// String returns a human-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeTransient:
		return "transient"
	case OutcomePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Retryable reports whether a fetch with this outcome should be retried.
func (o Outcome) Retryable() bool {
	return o == OutcomeTransient
}

// FetchResult is the product of one task's fetch, produced by a worker
// and consumed by the result processor. It is not retained after
// processing; durable data goes to the crawl database.
type FetchResult struct {
	// Task is the task this result belongs to.
	Task Task

	// Outcome is the final classification after retries.
	Outcome Outcome

	// StatusCode is the last HTTP status received, or 0 if the request
	// never completed.
	StatusCode int

	// ContentType is the Content-Type header of the response.
	ContentType string

	// Headers are the response headers of the last attempt.
	Headers http.Header

	// Body is the (size-limited) response body. Nil on failure.
	Body []byte

	// Err is the error from the last attempt, nil on success.
	Err error

	// Attempts is the number of fetch attempts made, including retries.
	Attempts int

	// Elapsed is the total time spent fetching, across all attempts.
	Elapsed time.Duration

	// FetchedAt is when the final attempt completed.
	FetchedAt time.Time
}

// Succeeded reports whether the fetch produced a usable page.
func (r *FetchResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// FailureReason returns a short description of why the fetch failed,
// or an empty string on success.
func (r *FetchResult) FailureReason() string {
	if r.Succeeded() {
		return ""
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return http.StatusText(r.StatusCode)
}

// BodyHash returns the SHA-256 hex digest of the body, or an empty
// string when there is no body. Used for change detection between runs.
func (r *FetchResult) BodyHash() string {
	if len(r.Body) == 0 {
		return ""
	}
	sum := sha256.Sum256(r.Body)
	return hex.EncodeToString(sum[:])
}
