package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/syllime/sylli-crawl/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeResources(md, report)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seeds", "`" + strings.Join(report.Seeds, "`, `") + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", report.Elapsed().String()},
			{"Pages Fetched", strconv.Itoa(report.PagesFetched)},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.CrawlReport) string {
	if report.BudgetExhausted {
		return "⚠️ Budget Exhausted (partial results)"
	}
	return "✅ Complete"
}

// writeSummary writes the fetch outcome summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"🟢 Fetched", strconv.Itoa(report.SucceededCount())},
			{"🔴 Failed", strconv.Itoa(report.FailedCount())},
			{"**Total**", "**" + strconv.Itoa(report.PagesFetched) + "**"},
		},
	})
	md.PlainText("")

	if len(report.Resources) > 0 {
		w.writeTypeChart(md, report)
	}

	w.writeAlert(md, report)
}

// writeTypeChart writes a mermaid pie chart of resource types.
func (w *MarkdownWriter) writeTypeChart(md *markdown.Markdown, report *model.CrawlReport) {
	counts := make(map[model.ResourceType]int)
	for _, res := range report.Resources {
		counts[res.Type]++
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Resource Type Distribution"),
		piechart.WithShowData(true),
	)

	for _, t := range []model.ResourceType{
		model.TypeArticle, model.TypeVideo, model.TypeDocument, model.TypeUnknown,
	} {
		if counts[t] > 0 {
			chart.LabelAndIntValue(string(t), uint64(counts[t]))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on the run outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	switch {
	case report.BudgetExhausted:
		md.Warningf(
			"The crawl hit its budget before exhausting the frontier; %d page(s) were fetched.",
			report.PagesFetched,
		)
	case report.FailedCount() > 0 && report.SucceededCount() == 0:
		md.Cautionf(
			"Every task failed (%d failure(s)). Check connectivity and the failure list below.",
			report.FailedCount(),
		)
	case report.FailedCount() > 0:
		md.Notef(
			"%d task(s) failed and are listed below; the rest of the crawl completed normally.",
			report.FailedCount(),
		)
	default:
		md.Tip("All discovered pages were fetched successfully.")
	}
	md.PlainText("")
}

// writeResources writes the fetched resources section.
func (w *MarkdownWriter) writeResources(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Resources")
	md.PlainText("")

	if len(report.Resources) == 0 {
		md.PlainText("No resources fetched.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Resources))
	for i, res := range report.Resources {
		title := res.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			truncateString(title, 60),
			string(res.Type),
			truncateString(res.URL, 70),
			truncateString(res.Author, 40),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "Type", "URL", "Author"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures writes the failed tasks section.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.CrawlReport) {
	if report.FailedCount() == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	rows := make([][]string, len(report.Failures))
	for i, f := range report.Failures {
		status := "-"
		if f.StatusCode != 0 {
			status = strconv.Itoa(f.StatusCode)
		}
		rows[i] = []string{
			truncateString(f.URL, 70),
			truncateString(f.Reason, 50),
			status,
			strconv.Itoa(f.Attempts),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Reason", "Status", "Attempts"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sylli-crawl](https://github.com/syllime/sylli-crawl)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
