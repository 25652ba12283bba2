// Package main provides the entry point for the sylli-crawl CLI.
//
// sylli-crawl is a polite, budget-bounded web crawler. Starting from a
// set of seed URLs it walks same-host links breadth-first, classifies
// what it finds into articles, videos, and documents, and produces a
// crawl report.
//
// Usage:
//
//	sylli-crawl crawl <url>...
//	sylli-crawl crawl --depth 3 --max-pages 200 <url>
//
// See --help for all available options.
package main

// main is the entry point for sylli-crawl.
func main() {
	Execute()
}
