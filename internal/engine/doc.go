// Package engine ties the crawl components into one run: seeding,
// the fetch worker pool, result processing, budget enforcement, and
// the final report.
//
// # Lifecycle
//
// A run moves through Idle -> Seeding -> Running -> Draining ->
// Terminated and never backwards. Draining is entered either naturally
// (no queued tasks, no in-flight fetches, no unprocessed results) or
// forcibly when the page or wall-clock budget runs out. In both cases
// in-flight fetches finish and their results are still processed, so
// the report never loses work that was already paid for.
package engine
