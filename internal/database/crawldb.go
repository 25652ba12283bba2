package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/syllime/sylli-crawl/internal/model"
)

// CrawlDB provides SQLite-based storage for crawl state and reports.
// It persists fetched pages so later runs can skip them, failed URLs so
// operators can re-check them in bulk, and complete run reports.
//
// Design decision: We use a single database file for all crawls rather
// than one per run. Resume and change detection need to see pages across
// runs, and a single file keeps backup/restore trivial.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB at the specified path.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, "sylli-crawl.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating
	// new files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single connection avoids
	// SQLITE_BUSY churn under concurrent inserts.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Pages store individual fetched pages, keyed by canonical URL
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL,
		host TEXT NOT NULL,
		depth INTEGER NOT NULL DEFAULT 0,
		status_code INTEGER,
		content_type TEXT,
		title TEXT,
		body_hash TEXT,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pages_host ON pages(host);
	CREATE INDEX IF NOT EXISTS idx_pages_fetched_at ON pages(fetched_at);

	-- Failures store URLs that could not be fetched, for later re-checking
	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		host TEXT NOT NULL,
		depth INTEGER NOT NULL DEFAULT 0,
		reason TEXT,
		status_code INTEGER,
		attempts INTEGER,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_failures_host ON failures(host);
	CREATE INDEX IF NOT EXISTS idx_failures_recorded_at ON failures(recorded_at);

	-- Crawl reports store complete run results as JSON
	CREATE TABLE IF NOT EXISTS crawl_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON crawl_reports(timestamp);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// PageRecord represents a stored fetched page.
type PageRecord struct {
	ID          int64
	Key         string
	URL         string
	Host        string
	Depth       int
	StatusCode  int
	ContentType string
	Title       string
	BodyHash    string
	FetchedAt   time.Time
}

// InsertPage inserts or updates a page record.
// Uses UPSERT on the canonical key so re-crawling a page refreshes its
// row instead of duplicating it.
func (cdb *CrawlDB) InsertPage(ctx context.Context, record *PageRecord) (int64, error) {
	query := `
	INSERT INTO pages (key, url, host, depth, status_code, content_type, title, body_hash)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		url = excluded.url,
		host = excluded.host,
		depth = excluded.depth,
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		title = excluded.title,
		body_hash = excluded.body_hash,
		fetched_at = CURRENT_TIMESTAMP
	`

	result, err := cdb.db.ExecContext(ctx, query,
		record.Key,
		record.URL,
		record.Host,
		record.Depth,
		record.StatusCode,
		record.ContentType,
		record.Title,
		record.BodyHash,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert page record: %w", err)
	}

	return result.LastInsertId()
}

// GetPage retrieves a page record by its canonical key. Returns nil
// without error when the page has never been stored.
func (cdb *CrawlDB) GetPage(ctx context.Context, key string) (*PageRecord, error) {
	query := `
	SELECT id, key, url, host, depth, status_code, content_type, title, body_hash, fetched_at
	FROM pages
	WHERE key = ?
	`

	var record PageRecord
	var fetchedAt string

	err := cdb.db.QueryRowContext(ctx, query, key).Scan(
		&record.ID,
		&record.Key,
		&record.URL,
		&record.Host,
		&record.Depth,
		&record.StatusCode,
		&record.ContentType,
		&record.Title,
		&record.BodyHash,
		&fetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page record: %w", err)
	}

	record.FetchedAt = parseTimestamp(fetchedAt)
	return &record, nil
}

// FetchedKeys returns the canonical keys of every stored page. Used to
// preload the seen-set when resuming, so already-fetched pages are not
// fetched again.
func (cdb *CrawlDB) FetchedKeys(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT key FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("failed to list fetched keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// HasRecentFetch checks if a page was fetched within the specified duration.
func (cdb *CrawlDB) HasRecentFetch(ctx context.Context, key string, within time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM pages
	WHERE key = ? AND fetched_at > datetime('now', ?)
	`

	// SQLite datetime modifier format
	modifier := fmt.Sprintf("-%d seconds", int(within.Seconds()))

	var count int
	if err := cdb.db.QueryRowContext(ctx, query, key, modifier).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent fetch: %w", err)
	}

	return count > 0, nil
}

// InsertFailures stores the failed tasks of a run for later re-checking.
func (cdb *CrawlDB) InsertFailures(ctx context.Context, failures []model.TaskFailure) error {
	if len(failures) == 0 {
		return nil
	}

	query := `
	INSERT INTO failures (url, host, depth, reason, status_code, attempts)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	for _, f := range failures {
		if _, err := cdb.db.ExecContext(ctx, query,
			f.URL, f.Host, f.Depth, f.Reason, f.StatusCode, f.Attempts,
		); err != nil {
			return fmt.Errorf("failed to insert failure for %s: %w", f.URL, err)
		}
	}
	return nil
}

// Failures retrieves the most recent stored failures, newest first,
// limited to the given count (0 means all).
func (cdb *CrawlDB) Failures(ctx context.Context, limit int) ([]model.TaskFailure, error) {
	query := `
	SELECT url, host, depth, reason, status_code, attempts
	FROM failures
	ORDER BY recorded_at DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var results []model.TaskFailure
	for rows.Next() {
		var f model.TaskFailure
		if err := rows.Scan(&f.URL, &f.Host, &f.Depth, &f.Reason, &f.StatusCode, &f.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		results = append(results, f)
	}

	return results, rows.Err()
}

// SaveCrawlReport saves a complete crawl report as JSON.
func (cdb *CrawlDB) SaveCrawlReport(ctx context.Context, report *model.CrawlReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `INSERT INTO crawl_reports (report_json) VALUES (?)`
	if _, err := cdb.db.ExecContext(ctx, query, string(reportJSON)); err != nil {
		return fmt.Errorf("failed to save crawl report: %w", err)
	}

	return nil
}

// LatestCrawlReport retrieves the most recent crawl report. Returns nil
// without error when no report has been saved yet.
func (cdb *CrawlDB) LatestCrawlReport(ctx context.Context) (*model.CrawlReport, error) {
	// CURRENT_TIMESTAMP has one-second resolution, so id breaks ties
	// between runs saved within the same second.
	query := `
	SELECT report_json FROM crawl_reports
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, query).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// SaveRun persists everything a finished run produced: page records for
// the fetched resources, failure rows, and the report itself.
func (cdb *CrawlDB) SaveRun(ctx context.Context, report *model.CrawlReport, pages []PageRecord) error {
	for i := range pages {
		if _, err := cdb.InsertPage(ctx, &pages[i]); err != nil {
			return err
		}
	}
	if err := cdb.InsertFailures(ctx, report.Failures); err != nil {
		return err
	}
	return cdb.SaveCrawlReport(ctx, report)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	// Return zero time if no format matches
	// This is a fallback to avoid breaking functionality for edge cases
	return time.Time{}
}
