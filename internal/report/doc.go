// Package report provides output writers for crawl reports.
// It supports human-readable text for terminals, JSON for tool
// integration, and GitHub Flavored Markdown for documentation, all
// behind a single Writer interface.
package report
