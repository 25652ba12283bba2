// Package database provides SQLite-based persistence for crawl state.
// It stores fetched pages (keyed by canonical URL) so later runs can
// resume without re-fetching, failed URLs so operators can re-check
// them, and complete crawl reports for history.
package database
