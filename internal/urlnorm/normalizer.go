package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned when a raw URL cannot be canonicalized.
// Tasks carrying such URLs are discarded and logged; they never crash
// the run.
var ErrInvalidURL = errors.New("invalid url")

// Normalize converts a raw URL string into its canonical key.
//
// The key is the deduplication identity of a page: two URLs that
// normalize to the same key are treated as the same page and only one
// of them is ever fetched.
//
// Normalization is deterministic, total, and side-effect free:
//   - scheme and host are lower-cased
//   - default ports are stripped (:80 for http, :443 for https)
//   - the fragment is removed (it never changes server content)
//   - an empty path becomes "/"
//   - query parameters are re-encoded in sorted key order
//
// Design decision: We fetch the raw URL but deduplicate on the key,
// rather than fetching the key itself, because a few servers are
// sensitive to the query-parameter order they emitted. The key only
// has to be stable, not routable.
func Normalize(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty string", ErrInvalidURL)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, err)
	}

	// Only web pages are crawlable. Schemes like javascript:, mailto:
	// and data: are filtered here so every caller gets the same policy.
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	u.Scheme = scheme

	host := strings.ToLower(u.Host)
	if host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, trimmed)
	}

	// Strip default ports so http://example.com and http://example.com:80
	// collapse to the same key.
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host

	// The fragment is client-side only.
	u.Fragment = ""

	// Empty path and "/" are the same page.
	if u.Path == "" {
		u.Path = "/"
	}

	// url.Values.Encode sorts by key, which fixes the parameter order.
	if u.RawQuery != "" {
		q, err := url.ParseQuery(u.RawQuery)
		if err != nil {
			return "", fmt.Errorf("%w: bad query in %q: %s", ErrInvalidURL, trimmed, err)
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// Host extracts the lower-cased hostname (without port) from a raw URL.
// It fails with ErrInvalidURL under the same conditions as Normalize.
func Host(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}
	return host, nil
}
