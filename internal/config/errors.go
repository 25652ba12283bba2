package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoSeeds is returned when no seed URL is specified, either as a
	// positional argument or in the config file's seeds list.
	ErrNoSeeds = errors.New("no seed specified: provide a URL or list seeds in the config file")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	// Zero workers would mean no fetching at all.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidDepth is returned when the crawl depth is negative.
	// Use 0 to fetch only the seed pages.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetries is returned when the retry budget is not positive.
	// The budget includes the first attempt, so it must be at least 1.
	ErrInvalidRetries = errors.New("invalid retries: must be at least 1")

	// ErrInvalidCrawlDelay is returned when the crawl delay or jitter is
	// negative. Use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidConcurrency is returned when a concurrency cap is not
	// positive, or the global cap is smaller than the per-host cap.
	ErrInvalidConcurrency = errors.New("invalid concurrency: caps must be positive and global >= per-host")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
