package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/syllime/sylli-crawl/internal/config"
	"github.com/syllime/sylli-crawl/internal/database"
	"github.com/syllime/sylli-crawl/internal/report"
)

// NewHistoryCmd creates the history command.
// This command inspects crawl data persisted by previous runs.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect results persisted by previous crawls",
		Long: `History reads the crawl database and displays data from previous runs.

By default it re-renders the report of the most recent crawl. With
--failures it lists the URLs that could not be fetched, which is useful
for deciding whether to re-run with --resume.

Examples:
  # Show the report of the last crawl
  sylli-crawl history

  # Show the last crawl report as Markdown
  sylli-crawl history --markdown

  # List the 20 most recent fetch failures
  sylli-crawl history --failures 20`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("failures", "F", 0,
		"List the N most recent fetch failures instead of the last report")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format (mutually exclusive with --json)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	failureLimit, err := cmd.Flags().GetInt("failures")
	if err != nil {
		return err
	}

	// The history command only reads what crawl runs wrote, so the
	// database location is always the XDG data directory.
	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if failureLimit > 0 {
		return listRecentFailures(ctx, db, failureLimit)
	}

	return showLatestReport(ctx, cmd, db, jsonOutput, markdownOutput)
}

// showLatestReport re-renders the most recent stored crawl report.
func showLatestReport(ctx context.Context, cmd *cobra.Command, db *database.CrawlDB, jsonOutput, markdownOutput bool) error {
	crawlReport, err := db.LatestCrawlReport(ctx)
	if err != nil {
		return fmt.Errorf("failed to load latest crawl report: %w", err)
	}
	if crawlReport == nil {
		fmt.Println("No crawl reports found in the database.")
		fmt.Println("\nUse 'sylli-crawl crawl <url>' to run a crawl.")
		return nil
	}

	var writer report.Writer
	switch {
	case jsonOutput:
		writer = report.NewFullJSONWriter(cmd.OutOrStdout(), getVersion(), report.WithPrettyPrint())
	case markdownOutput:
		writer = report.NewMarkdownWriter(cmd.OutOrStdout())
	default:
		writer = report.NewSimpleWriter(cmd.OutOrStdout(), report.WithShowEmpty(true))
	}

	_, err = writer.Write(crawlReport)
	return err
}

// listRecentFailures lists the most recently recorded fetch failures.
func listRecentFailures(ctx context.Context, db *database.CrawlDB, limit int) error {
	failures, err := db.Failures(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to load failures: %w", err)
	}

	if len(failures) == 0 {
		fmt.Println("No fetch failures recorded in the database.")
		return nil
	}

	fmt.Printf("Recent fetch failures (%d):\n\n", len(failures))
	fmt.Printf("  %-6s  %-8s  %s\n", "HTTP", "Attempts", "URL")
	fmt.Println("  " + strings.Repeat("-", 60))

	for _, f := range failures {
		status := "-"
		if f.StatusCode != 0 {
			status = fmt.Sprintf("%d", f.StatusCode)
		}
		fmt.Printf("  %-6s  %-8d  %s\n", status, f.Attempts, f.URL)
		if f.Reason != "" {
			fmt.Printf("  %-6s  %-8s  └─ %s\n", "", "", f.Reason)
		}
	}

	fmt.Println("\nUse 'sylli-crawl crawl --resume <url>' to retry what previous runs missed.")

	return nil
}
