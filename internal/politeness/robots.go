package politeness

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// maxRobotsSize limits how much of a robots.txt file is read. Real
// robots files are a few kilobytes; anything larger is suspect.
const maxRobotsSize = 512 * 1024

// RobotsCache fetches and caches robots.txt policies per host.
//
// Design decision: We treat robots fetch failures as "allow all"
// because the crawl should degrade toward normal fetching, not stall,
// when a site has no robots.txt or its server misbehaves. A host that
// wants to restrict crawlers must serve a parseable file; this matches
// the de facto standard interpretation (4xx = no restrictions).
type RobotsCache struct {
	// client performs the robots.txt fetches. It should be the same
	// client the workers use so proxy settings apply.
	client *http.Client

	// userAgent selects the robots group to test against.
	userAgent string

	mu    sync.Mutex
	cache map[string]*robotstxt.Group
}

// NewRobotsCache creates a cache that fetches robots.txt with the
// given client and evaluates rules for the given user agent.
func NewRobotsCache(client *http.Client, userAgent string) *RobotsCache {
	return &RobotsCache{
		client:    client,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether the crawler may fetch the given URL under
// the host's robots.txt policy. The policy is fetched once per
// scheme://host and cached for the run.
func (rc *RobotsCache) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		// Unparseable URLs are rejected by normalization long before
		// this point; answer permissively rather than guessing.
		return true
	}

	group := rc.group(ctx, u.Scheme, u.Host)
	if group == nil {
		return true
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path)
}

// group returns the cached robots group for a scheme://host origin,
// fetching the robots.txt on first use. A nil group means no
// restrictions apply.
func (rc *RobotsCache) group(ctx context.Context, scheme, host string) *robotstxt.Group {
	origin := scheme + "://" + host

	rc.mu.Lock()
	group, cached := rc.cache[origin]
	rc.mu.Unlock()
	if cached {
		return group
	}

	group = rc.fetch(ctx, origin)

	rc.mu.Lock()
	// First writer wins; a racing fetch of the same origin is harmless.
	if existing, cached := rc.cache[origin]; cached {
		group = existing
	} else {
		rc.cache[origin] = group
	}
	rc.mu.Unlock()

	return group
}

// fetch retrieves and parses an origin's robots.txt. Returns nil
// (allow all) on any fetch or parse failure.
func (rc *RobotsCache) fetch(ctx context.Context, origin string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/robots.txt", origin), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data.FindGroup(rc.userAgent)
}
