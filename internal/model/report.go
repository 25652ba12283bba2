package model

import "time"

// TaskFailure records one task that could not be fetched, with enough
// context to investigate later. Failed URLs are also persisted to the
// crawl database so operators can re-check them in bulk.
type TaskFailure struct {
	// URL is the raw URL that failed.
	URL string `json:"url"`

	// Host is the URL's hostname.
	Host string `json:"host"`

	// Depth is the crawl depth the task was scheduled at.
	Depth int `json:"depth"`

	// Reason is a short description of the failure.
	Reason string `json:"reason"`

	// StatusCode is the last HTTP status, or 0 if no response arrived.
	StatusCode int `json:"status_code,omitempty"`

	// Attempts is how many times the fetch was tried.
	Attempts int `json:"attempts"`
}

// CrawlReport aggregates the outcome of one crawl run. It is built
// incrementally by the engine and finalized when the run terminates.
//
// The report distinguishes successfully fetched pages from failed ones,
// with the failure reason attached per task. Per-task failures never
// abort the run, so a report can carry both a large resource list and a
// large failure list.
type CrawlReport struct {
	// Seeds are the starting URLs of the run.
	Seeds []string `json:"seeds"`

	// State is the engine state the run ended in, normally "terminated".
	State string `json:"state"`

	// StartedAt is when the engine began seeding.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the engine reached its final state.
	FinishedAt time.Time `json:"finished_at"`

	// PagesFetched counts completed fetches, successful or not.
	PagesFetched int `json:"pages_fetched"`

	// Resources are the successfully fetched pages.
	Resources []Resource `json:"resources"`

	// Failures are the tasks that could not be fetched.
	Failures []TaskFailure `json:"failures"`

	// BudgetExhausted is true when the run was cut short by the page
	// or wall-clock budget rather than by draining the frontier.
	BudgetExhausted bool `json:"budget_exhausted"`
}

// NewCrawlReport creates an empty report for the given seeds.
func NewCrawlReport(seeds []string) *CrawlReport {
	return &CrawlReport{
		Seeds:     seeds,
		StartedAt: time.Now(),
		Resources: make([]Resource, 0),
		Failures:  make([]TaskFailure, 0),
	}
}

// AddResource appends a successfully fetched resource.
func (r *CrawlReport) AddResource(res Resource) {
	r.Resources = append(r.Resources, res)
}

// AddFailure appends a failed task built from its fetch result.
func (r *CrawlReport) AddFailure(fr *FetchResult) {
	r.Failures = append(r.Failures, TaskFailure{
		URL:        fr.Task.RawURL,
		Host:       fr.Task.Host,
		Depth:      fr.Task.Depth,
		Reason:     fr.FailureReason(),
		StatusCode: fr.StatusCode,
		Attempts:   fr.Attempts,
	})
}

// SucceededCount returns the number of successfully fetched pages.
func (r *CrawlReport) SucceededCount() int {
	return len(r.Resources)
}

// FailedCount returns the number of failed tasks.
func (r *CrawlReport) FailedCount() int {
	return len(r.Failures)
}

// Elapsed returns the wall-clock duration of the run.
func (r *CrawlReport) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
