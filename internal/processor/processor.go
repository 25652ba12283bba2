package processor

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/syllime/sylli-crawl/internal/frontier"
	"github.com/syllime/sylli-crawl/internal/model"
	"github.com/syllime/sylli-crawl/internal/urlnorm"
)

// Processor turns fetch results into output resources and newly
// discovered tasks.
//
// The processor owns the admission path for discovered links: each link
// is normalized, checked against the depth limit and host scope, and
// then claimed in the seen-set. Only links whose claim succeeds become
// tasks, so a URL reached from two pages at once yields exactly one
// task no matter how the races fall.
type Processor struct {
	// seen is the shared admission gate. Claims made here are what
	// keep the crawl from fetching a page twice.
	seen *frontier.SeenSet

	// maxDepth is the link distance at which discovery stops. Links
	// found on a page at maxDepth are dropped without being claimed,
	// so they stay reachable if a shorter path to them appears later.
	maxDepth int

	// hostDepths overrides maxDepth per host, from the site
	// configuration. A link's limit is decided by the host it points
	// at, so a members area can be kept shallow while the rest of the
	// crawl goes deeper (or the other way around).
	hostDepths map[string]int

	// allowedHosts scopes discovery; empty means any host is fair
	// game. Seeds always populate this unless the operator opted into
	// external following.
	allowedHosts map[string]struct{}

	logger *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithAllowedHosts restricts discovered links to the given hosts.
func WithAllowedHosts(hosts []string) Option {
	return func(p *Processor) {
		if len(hosts) == 0 {
			return
		}
		p.allowedHosts = make(map[string]struct{}, len(hosts))
		for _, h := range hosts {
			p.allowedHosts[strings.ToLower(h)] = struct{}{}
		}
	}
}

// WithHostDepths overrides the depth limit for individual hosts. Links
// into hosts absent from the map use the global limit.
func WithHostDepths(depths map[string]int) Option {
	return func(p *Processor) {
		if len(depths) == 0 {
			return
		}
		p.hostDepths = make(map[string]int, len(depths))
		for host, depth := range depths {
			p.hostDepths[strings.ToLower(host)] = depth
		}
	}
}

// WithLogger sets a custom logger for the processor.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// New creates a processor. maxDepth is the deepest link distance that
// may still be fetched; links discovered at that depth are not
// followed further.
func New(seen *frontier.SeenSet, maxDepth int, opts ...Option) *Processor {
	p := &Processor{
		seen:     seen,
		maxDepth: maxDepth,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Process consumes one fetch result. For a successful HTML fetch it
// parses the body, builds the output resource, and returns the tasks
// for every newly admitted link. Video and document pages produce a
// resource but no tasks. Redirect results contribute the redirect
// target as a candidate link. Failed results produce neither.
func (p *Processor) Process(result *model.FetchResult) (*model.Resource, []model.Task) {
	if result.Outcome == model.OutcomeRedirect {
		return nil, p.admit(result.Task, p.redirectTarget(result))
	}
	if !result.Succeeded() {
		return nil, nil
	}

	resourceType := Classify(result.Task.RawURL, result.ContentType)
	resource := &model.Resource{
		URL:    result.Task.RawURL,
		Author: result.Task.Host,
		Type:   resourceType,
		Source: result.Task.Host,
	}

	if !parseable(resourceType) {
		return resource, nil
	}

	parser, err := NewParser(result.Task.RawURL)
	if err != nil {
		p.logger.Warn("unparseable task url", "url", result.Task.RawURL, "error", err)
		return resource, nil
	}
	parsed, err := parser.Parse(bytes.NewReader(result.Body), result.ContentType)
	if err != nil {
		// A page we cannot parse is still a fetched page; it just
		// contributes no links.
		p.logger.Warn("html parse failed", "url", result.Task.RawURL, "error", err)
		return resource, nil
	}

	resource.Title = parsed.Title
	if parsed.Author != "" {
		resource.Author = parsed.Author
	}

	return resource, p.admit(result.Task, parsed.Links)
}

// redirectTarget resolves the Location header of a redirect response
// against the task URL. Returns no candidates when the header is
// missing or malformed.
func (p *Processor) redirectTarget(result *model.FetchResult) []string {
	location := result.Headers.Get("Location")
	if location == "" {
		return nil
	}
	parser, err := NewParser(result.Task.RawURL)
	if err != nil {
		return nil
	}
	if resolved := parser.resolve(location); resolved != "" {
		return []string{resolved}
	}
	return nil
}

// admit runs candidate links through the full admission path:
// depth limit, normalization, host scope, seen-set claim. The order
// matters: the depth check precedes the claim, so an over-deep link is
// left unclaimed and can still be admitted later via a shorter path.
func (p *Processor) admit(parent model.Task, links []string) []model.Task {
	if len(links) == 0 {
		return nil
	}
	childDepth := parent.Depth + 1
	if len(p.hostDepths) == 0 && childDepth > p.maxDepth {
		return nil
	}

	tasks := make([]model.Task, 0, len(links))
	for _, link := range links {
		key, err := urlnorm.Normalize(link)
		if err != nil {
			continue
		}
		host, err := urlnorm.Host(link)
		if err != nil || host == "" {
			continue
		}
		if childDepth > p.depthLimit(host) {
			continue
		}
		if !p.hostAllowed(host) {
			continue
		}
		if !p.seen.TryClaim(key) {
			continue
		}
		tasks = append(tasks, model.NewTask(key, link, host, childDepth))
	}
	return tasks
}

// depthLimit returns the depth limit that applies to links into the
// given host.
func (p *Processor) depthLimit(host string) int {
	if depth, ok := p.hostDepths[strings.ToLower(host)]; ok {
		return depth
	}
	return p.maxDepth
}

// hostAllowed reports whether discovery may follow a link to the host.
func (p *Processor) hostAllowed(host string) bool {
	if p.allowedHosts == nil {
		return true
	}
	_, ok := p.allowedHosts[strings.ToLower(host)]
	return ok
}
