package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/syllime/sylli-crawl/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeResources(&sb, report)
	w.writeFailures(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Seeds:          %s\n", strings.Join(report.Seeds, ", ")))
	sb.WriteString(fmt.Sprintf("Started:        %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Elapsed:        %s\n", report.Elapsed().Round(10*time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Pages Fetched:  %d\n", report.PagesFetched))
	sb.WriteString(fmt.Sprintf("Resources:      %d\n", report.SucceededCount()))
	sb.WriteString(fmt.Sprintf("Failures:       %d\n", report.FailedCount()))

	if report.BudgetExhausted {
		sb.WriteString("Status:         BUDGET EXHAUSTED (partial results)\n")
	} else {
		sb.WriteString("Status:         Complete\n")
	}

	sb.WriteString("\n")
}

// writeResources writes the fetched resources section.
func (w *SimpleWriter) writeResources(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Resources) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("RESOURCES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Resources) == 0 {
		sb.WriteString("  No resources fetched\n")
	}
	for _, res := range report.Resources {
		title := res.Title
		if title == "" {
			title = "(untitled)"
		}
		sb.WriteString(fmt.Sprintf("  [%s] %s\n", res.Type, title))
		sb.WriteString(fmt.Sprintf("        %s\n", res.URL))
		if w.verbose && res.Author != "" {
			sb.WriteString(fmt.Sprintf("        Author: %s\n", res.Author))
		}
	}
	sb.WriteString("\n")
}

// writeFailures writes the failed tasks section.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Failures) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILURES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Failures) == 0 {
		sb.WriteString("  No failures\n")
	}
	for _, f := range report.Failures {
		sb.WriteString(fmt.Sprintf("  * %s\n", f.URL))
		sb.WriteString(fmt.Sprintf("    Reason: %s", f.Reason))
		if f.StatusCode != 0 {
			sb.WriteString(fmt.Sprintf(" (HTTP %d)", f.StatusCode))
		}
		sb.WriteString("\n")
		if w.verbose {
			sb.WriteString(fmt.Sprintf("    Depth: %d, Attempts: %d\n", f.Depth, f.Attempts))
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sylli-crawl\n")
	sb.WriteString("https://github.com/syllime/sylli-crawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
