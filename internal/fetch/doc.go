// Package fetch performs the network side of the crawl: the shared
// HTTP client, the per-task fetcher with retry/backoff, and the
// worker pool that drives both from the frontier.
//
// # Failure semantics
//
// Fetch attempts produce tagged outcomes (success, redirect,
// transient, permanent) instead of driving control flow through
// errors. Transient failures (timeouts, resets, 429, 5xx) are retried
// with exponential backoff up to a bounded attempt count and then
// reported as permanent; 4xx and malformed requests are permanent
// immediately. A failed task is a result like any other; it never
// aborts the run.
//
// # Transport
//
// The client is built once per run and injected everywhere, so tests
// can substitute an httptest server and operators can route the whole
// crawl through a SOCKS5 proxy.
package fetch
