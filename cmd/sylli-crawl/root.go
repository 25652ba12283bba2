// Package main provides the entry point for the sylli-crawl CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sylli-crawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sylli-crawl",
		Short: "Polite, budget-bounded web crawler for resource discovery",
		Long: `sylli-crawl crawls a set of seed URLs breadth-first, collecting
articles, videos, and documents into a crawl report.

By default the crawler honors robots.txt and rate-limits itself per
host. Every crawl is bounded by link depth, page count, and an optional
wall-clock budget, so a run always terminates.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
