package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. These are conservative: the politeness
// defaults err on the side of being gentle to crawled hosts, and the
// budgets prevent a runaway crawl on an unexpectedly large site.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sylli-crawl"

	// DefaultWorkers is the fetch pool size. Four workers keep several
	// hosts busy at once without looking like a flood to any of them.
	DefaultWorkers = 4

	// DefaultCrawlDepth limits link distance from the seeds. Depth 2
	// covers a seed page plus what it links to plus one more hop, which
	// is where most crawls stop finding new relevant content.
	DefaultCrawlDepth = 2

	// DefaultMaxPages caps completed fetches per run. This prevents
	// runaway crawling on large or infinitely-generating sites.
	// Users can override this via the --max-pages CLI flag.
	DefaultMaxPages = 500

	// DefaultCrawlDelay is the minimum spacing between requests to one
	// host. 1 second is conservative and respectful of server resources.
	DefaultCrawlDelay = 1 * time.Second

	// DefaultJitter is the random extra wait added on top of the crawl
	// delay, so request timing does not look mechanical.
	DefaultJitter = 500 * time.Millisecond

	// DefaultHostConcurrency is the per-host in-flight request cap.
	// One request at a time per host is the politest possible setting.
	DefaultHostConcurrency = 1

	// DefaultGlobalConcurrency caps in-flight requests across all hosts.
	DefaultGlobalConcurrency = 8

	// DefaultTimeout is the per-request timeout. 30 seconds tolerates
	// slow servers without letting one dead host pin a worker forever.
	DefaultTimeout = 30 * time.Second

	// DefaultRetries is the attempt budget per task, including the
	// first attempt.
	DefaultRetries = 3

	// DefaultUserAgent identifies the crawler in HTTP requests.
	// A descriptive User-Agent lets operators identify crawler traffic.
	DefaultUserAgent = "sylli-crawl/1.0 (+https://github.com/syllime/sylli-crawl)"

	// DefaultMaxBodySize limits the response body size to read. 5MB is
	// sufficient for most HTML pages while preventing memory exhaustion
	// from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// Config holds all configuration options for a crawl run.
// This struct is populated from CLI flags and the optional config file
// and passed through the application via dependency injection rather
// than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., PolitenessConfig, ReportConfig) for simplicity. The number of
// options is manageable, and nesting would add complexity without
// significant benefit.
type Config struct {
	// Seeds are the starting URLs of the crawl. Populated from
	// positional arguments and/or the config file's seeds list.
	Seeds []string

	// Workers is the fetch pool size.
	Workers int

	// CrawlDepth is the maximum link distance from the seeds.
	// Depth 0 means only fetch the seed pages.
	CrawlDepth int

	// MaxPages caps completed fetches per run; 0 means unlimited.
	MaxPages int

	// Budget caps the wall-clock runtime of the crawl; 0 means
	// unlimited.
	Budget time.Duration

	// CrawlDelay is the minimum spacing between requests to one host.
	CrawlDelay time.Duration

	// Jitter is the upper bound of the random extra wait added to the
	// crawl delay per request.
	Jitter time.Duration

	// HostConcurrency caps in-flight requests per host.
	HostConcurrency int

	// GlobalConcurrency caps in-flight requests across all hosts.
	GlobalConcurrency int

	// Timeout is the per-request timeout, covering connection,
	// headers, and body.
	Timeout time.Duration

	// Retries is the attempt budget per task, including the first
	// attempt.
	Retries int

	// ProxyAddress routes all traffic through a SOCKS5 proxy in
	// "host:port" format. Empty means direct connections.
	ProxyAddress string

	// IgnoreRobots disables robots.txt checking. The default is to
	// honor robots.txt.
	IgnoreRobots bool

	// UserAgent is the User-Agent header sent with every request and
	// matched against robots.txt groups.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated.
	MaxBodySize int64

	// AllowHosts are extra hosts the crawl may follow links into, in
	// addition to the seed hosts. Ignored when FollowExternal is set.
	AllowHosts []string

	// FollowExternal lifts host scoping entirely, letting the crawl
	// follow links to any host. Use together with MaxPages.
	FollowExternal bool

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only info and above are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file. If empty,
	// the tool searches for .sylli-crawl.yaml in the current directory,
	// then the XDG config directory.
	ConfigFilePath string

	// SiteConfigs holds per-host overrides loaded from the config file.
	SiteConfigs *File

	// JSONReport outputs the crawl report as JSON instead of the
	// human-readable format. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport outputs the crawl report as GitHub Flavored
	// Markdown. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// DBDir is the directory for the SQLite crawl database. When set,
	// fetched pages and failed URLs are persisted, and later runs skip
	// already-fetched pages. When empty, nothing is persisted.
	DBDir string

	// SaveToDB indicates whether to persist crawl state. Automatically
	// true when DBDir is configured.
	SaveToDB bool

	// Resume preloads the seen-set with pages already stored in the
	// database, so a new run only fetches what previous runs missed.
	Resume bool
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use
// cases. Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, delay).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Workers:           DefaultWorkers,
		CrawlDepth:        DefaultCrawlDepth,
		MaxPages:          DefaultMaxPages,
		CrawlDelay:        DefaultCrawlDelay,
		Jitter:            DefaultJitter,
		HostConcurrency:   DefaultHostConcurrency,
		GlobalConcurrency: DefaultGlobalConcurrency,
		Timeout:           DefaultTimeout,
		Retries:           DefaultRetries,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for the crawler.
// On Linux: ~/.local/share/sylli-crawl
// On macOS: ~/Library/Application Support/sylli-crawl
// On Windows: %LOCALAPPDATA%\sylli-crawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for the crawler.
// On Linux: ~/.config/sylli-crawl
// On macOS: ~/Library/Application Support/sylli-crawl
// On Windows: %APPDATA%\sylli-crawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for the crawler.
// On Linux: ~/.cache/sylli-crawl
// On macOS: ~/Library/Caches/sylli-crawl
// On Windows: %LOCALAPPDATA%\sylli-crawl\cache
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any crawling begins.
//
// We chose to return the first error found rather than collecting all
// errors because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeeds
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.CrawlDepth < 0 {
		return ErrInvalidDepth
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Retries <= 0 {
		return ErrInvalidRetries
	}
	if c.CrawlDelay < 0 || c.Jitter < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.HostConcurrency <= 0 || c.GlobalConcurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.GlobalConcurrency < c.HostConcurrency {
		return ErrInvalidConcurrency
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}
