// Package politeness gates every fetch behind per-host and global
// rate limits plus robots.txt policy.
//
// # Components
//
//   - Limiter: blocking Acquire/Release around each fetch, enforcing
//     the per-host inter-fetch delay, the per-host in-flight cap, and
//     the global in-flight cap. Host state lives only here.
//   - RobotsCache: per-host robots.txt policy, fetched lazily and
//     cached for the run.
//
// Within a host the Limiter guarantees fetch start times spaced by at
// least the configured delay; across hosts no ordering is imposed, so
// hosts progress independently.
package politeness
