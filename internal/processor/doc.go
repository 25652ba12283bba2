// Package processor turns fetch results into output resources and
// newly discovered crawl tasks.
//
// Processing is where deduplication actually happens: every link pulled
// out of a page goes through normalization and the seen-set claim, and
// only links that win their claim become tasks. Pages are classified
// before parsing, so video watch pages and binary documents are
// recorded as resources without pretending their bodies contain
// followable links.
package processor
