// Package urlnorm canonicalizes raw URL strings into stable
// deduplication keys.
//
// Every URL entering the crawl passes through Normalize exactly once,
// before the seen-set admission check. The rest of the engine only ever
// compares canonical keys, so the rules here are the single source of
// truth for "is this the same page".
package urlnorm
