// Package frontier holds the crawl's pending work and its memory of
// what has already been scheduled.
//
// # Components
//
//   - Frontier: the ordered set of not-yet-fetched tasks. Workers block
//     on Pop; the processor and seeder feed it through Push; Close plus
//     drain is the normal end-of-crawl signal.
//   - SeenSet: the record of every canonical key ever admitted.
//     TryClaim is the single admission gate, so no key can be queued
//     twice concurrently no matter how many workers race on it.
//
// Both structures are the only state mutated by multiple workers
// concurrently (besides the politeness gate's host state), so all their
// operations are atomic under an internal mutex.
package frontier
