package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/syllime/sylli-crawl/internal/config"
	"github.com/syllime/sylli-crawl/internal/database"
	"github.com/syllime/sylli-crawl/internal/engine"
	"github.com/syllime/sylli-crawl/internal/fetch"
	"github.com/syllime/sylli-crawl/internal/frontier"
	"github.com/syllime/sylli-crawl/internal/log"
	"github.com/syllime/sylli-crawl/internal/model"
	"github.com/syllime/sylli-crawl/internal/politeness"
	"github.com/syllime/sylli-crawl/internal/processor"
	"github.com/syllime/sylli-crawl/internal/report"
	"github.com/syllime/sylli-crawl/internal/urlnorm"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url]...",
		Short: "Crawl seed URLs and collect resources into a report",
		Long: `Crawl walks the given seed URLs breadth-first, staying on the seed
hosts, and collects the pages it fetches into a crawl report.

Each fetched page is classified as an article, video, or document.
Links are deduplicated by canonical URL, so every page is fetched at
most once per run. The crawl stops when the frontier is exhausted or
when a budget (page count or wall-clock) runs out.

Examples:
  # Crawl a single site two levels deep (the default)
  sylli-crawl crawl https://example.com

  # Crawl several sites with a page budget
  sylli-crawl crawl --max-pages 200 https://a.example https://b.example

  # Bound the run to five minutes of wall-clock time
  sylli-crawl crawl --budget 5m https://example.com

  # Allow the crawl to follow links into another host
  sylli-crawl crawl --allow-host cdn.example.com https://example.com

  # Output JSON report to a file
  sylli-crawl crawl --json -o report.json https://example.com

Configuration file (.sylli-crawl.yaml) example:
  seeds:
    - https://example.com/
  sites:
    slow.example.com:
      delay: 5s
    members.example.com:
      cookie: "session=abc123"
      headers:
        Authorization: "Bearer token"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
		"Maximum link distance from the seeds (0 fetches only the seeds)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to fetch (0 for unlimited)")
	cmd.Flags().DurationP("budget", "B", 0,
		"Wall-clock budget for the whole run (0 for unlimited)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent fetch workers")

	// Politeness flags
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Minimum spacing between requests to one host")
	cmd.Flags().Duration("jitter", config.DefaultJitter,
		"Upper bound of the random extra wait added to the delay")
	cmd.Flags().Int("host-concurrency", config.DefaultHostConcurrency,
		"Maximum in-flight requests per host")
	cmd.Flags().Int("global-concurrency", config.DefaultGlobalConcurrency,
		"Maximum in-flight requests across all hosts")
	cmd.Flags().Bool("ignore-robots", false,
		"Do not fetch or honor robots.txt")

	// Request flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Per-request timeout covering connection, headers, and body")
	cmd.Flags().IntP("retries", "r", config.DefaultRetries,
		"Attempt budget per URL, including the first attempt")
	cmd.Flags().StringP("proxy", "x", "",
		"Route all traffic through a SOCKS5 proxy (host:port)")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes to read")

	// Scope flags
	cmd.Flags().StringSliceP("allow-host", "a", nil,
		"Extra host the crawl may follow links into (repeatable)")
	cmd.Flags().Bool("follow-external", false,
		"Follow links to any host (use together with --max-pages)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sylli-crawl.yaml in current directory)")

	// Persistence flags
	cmd.Flags().Bool("no-db", false,
		"Do not persist fetched pages to the crawl database")
	cmd.Flags().Bool("resume", false,
		"Skip pages already fetched by previous runs (requires the database)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	// Build config from flags
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with secret sanitization
	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCrawl(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.CrawlDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.Budget, err = cmd.Flags().GetDuration("budget")
	if err != nil {
		return nil, err
	}

	cfg.Workers, err = cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, err
	}

	cfg.CrawlDelay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}

	cfg.Jitter, err = cmd.Flags().GetDuration("jitter")
	if err != nil {
		return nil, err
	}

	cfg.HostConcurrency, err = cmd.Flags().GetInt("host-concurrency")
	if err != nil {
		return nil, err
	}

	cfg.GlobalConcurrency, err = cmd.Flags().GetInt("global-concurrency")
	if err != nil {
		return nil, err
	}

	cfg.IgnoreRobots, err = cmd.Flags().GetBool("ignore-robots")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.Retries, err = cmd.Flags().GetInt("retries")
	if err != nil {
		return nil, err
	}

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size")
	if err != nil {
		return nil, err
	}

	cfg.AllowHosts, err = cmd.Flags().GetStringSlice("allow-host")
	if err != nil {
		return nil, err
	}

	cfg.FollowExternal, err = cmd.Flags().GetBool("follow-external")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load seeds and site-specific configurations from the config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		// User explicitly specified a config file that doesn't exist
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		// Use empty config if no file found and user didn't explicitly specify one
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	if !noDB {
		cfg.SaveToDB = true
		cfg.DBDir = config.XDGDataDir()
	}

	cfg.Resume, err = cmd.Flags().GetBool("resume")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// Seeds: positional arguments plus the config file's seeds list
	cfg.Seeds = append(cfg.Seeds, args...)
	cfg.Seeds = append(cfg.Seeds, cfg.SiteConfigs.Seeds...)

	return cfg, nil
}

// runCrawl wires the crawl components from the configuration and
// executes one run.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"depth", cfg.CrawlDepth,
		"maxPages", cfg.MaxPages,
		"workers", cfg.Workers,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	// The seen-set is shared between seeding and link admission so a
	// URL is fetched at most once no matter where it was discovered.
	seen := frontier.NewSeenSet()
	if db != nil && cfg.Resume {
		keys, err := db.FetchedKeys(ctx)
		if err != nil {
			return fmt.Errorf("failed to load fetched pages: %w", err)
		}
		seen.Preload(keys)
		logger.Info("resuming previous crawl", "alreadyFetched", len(keys))
	}

	limiterOpts := []politeness.Option{politeness.WithJitter(cfg.Jitter)}
	for host, delay := range cfg.SiteConfigs.HostDelays() {
		limiterOpts = append(limiterOpts, politeness.WithHostDelay(host, delay))
	}
	limiter := politeness.NewLimiter(cfg.CrawlDelay, cfg.HostConcurrency, cfg.GlobalConcurrency, limiterOpts...)

	client, err := fetch.NewClient(cfg.Timeout, cfg.ProxyAddress)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	retryPolicy := fetch.DefaultRetryPolicy()
	retryPolicy.MaxAttempts = cfg.Retries

	fetcherOpts := []fetch.FetcherOption{
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithRetryPolicy(retryPolicy),
	}
	if lookup := cfg.SiteConfigs.SiteHeaders(); lookup != nil {
		fetcherOpts = append(fetcherOpts, fetch.WithSiteHeaders(lookup))
	}
	fetcher := fetch.NewFetcher(client, fetcherOpts...)

	procOpts := []processor.Option{processor.WithLogger(logger)}
	if !cfg.FollowExternal {
		procOpts = append(procOpts, processor.WithAllowedHosts(scopedHosts(cfg, logger)))
	}
	if depths := cfg.SiteConfigs.HostDepths(); depths != nil {
		procOpts = append(procOpts, processor.WithHostDepths(depths))
	}
	proc := processor.New(seen, cfg.CrawlDepth, procOpts...)

	engineOpts := []engine.Option{
		engine.WithWorkers(cfg.Workers),
		engine.WithMaxPages(cfg.MaxPages),
		engine.WithBudget(cfg.Budget),
		engine.WithLogger(logger),
	}
	if !cfg.IgnoreRobots {
		engineOpts = append(engineOpts, engine.WithRobots(politeness.NewRobotsCache(client, cfg.UserAgent)))
	}

	// Accumulate page records for persistence. The hook runs on the
	// engine's collector goroutine, so plain appends are safe.
	var pages []database.PageRecord
	if db != nil {
		engineOpts = append(engineOpts, engine.WithResultHook(func(result *model.FetchResult, resource *model.Resource) {
			if !result.Succeeded() {
				return
			}
			record := database.PageRecord{
				Key:         result.Task.Key,
				URL:         result.Task.RawURL,
				Host:        result.Task.Host,
				Depth:       result.Task.Depth,
				StatusCode:  result.StatusCode,
				ContentType: result.ContentType,
				BodyHash:    result.BodyHash(),
			}
			if resource != nil {
				record.Title = resource.Title
			}
			pages = append(pages, record)
		}))
	}

	eng := engine.New(seen, frontier.New(), limiter, fetcher, proc, engineOpts...)

	fmt.Printf("Crawling %d seed(s)...\n", len(cfg.Seeds))
	startTime := time.Now()

	crawlReport, runErr := eng.Run(ctx, cfg.Seeds)

	// A resumed run where every seed was already fetched is a no-op,
	// not an error.
	if cfg.Resume && errors.Is(runErr, engine.ErrNoSeeds) {
		logger.Info("all seeds already fetched by previous runs")
		runErr = nil
	}

	elapsed := time.Since(startTime)
	fmt.Printf("Crawl completed in %s\n", elapsed.Round(time.Millisecond))

	// Generate and output report
	if err := outputReport(cfg, crawlReport); err != nil {
		logger.Error("report output failed", "error", err)
	}

	// Save to database if enabled
	if db != nil {
		if err := db.SaveRun(ctx, crawlReport, pages); err != nil {
			logger.Error("failed to save crawl run", "error", err)
		} else {
			logger.Info("crawl run saved to database", "pages", len(pages))
		}
	}

	return runErr
}

// scopedHosts returns the hosts the crawl may follow links into: the
// seed hosts plus any --allow-host additions. Malformed seeds are
// skipped here; the engine logs and skips them again during seeding.
func scopedHosts(cfg *config.Config, logger *slog.Logger) []string {
	hosts := make([]string, 0, len(cfg.Seeds)+len(cfg.AllowHosts))
	for _, seed := range cfg.Seeds {
		host, err := urlnorm.Host(seed)
		if err != nil || host == "" {
			logger.Warn("seed excluded from host scope", "seed", seed, "error", err)
			continue
		}
		hosts = append(hosts, host)
	}
	return append(hosts, cfg.AllowHosts...)
}

// outputReport outputs the crawl report in the requested format.
func outputReport(cfg *config.Config, crawlReport *model.CrawlReport) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Create/overwrite the output file with owner-only permissions;
		// reports can include URLs from authenticated areas.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	// JSON output with version metadata
	if cfg.JSONReport {
		writer := report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
		_, err := writer.Write(crawlReport)
		return err
	}

	// Markdown output
	if cfg.MarkdownReport {
		writer := report.NewMarkdownWriter(output)
		_, err := writer.Write(crawlReport)
		return err
	}

	// Human-readable report (default)
	writer := report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	_, err := writer.Write(crawlReport)
	return err
}
