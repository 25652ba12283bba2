package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "5s" or "200ms". gopkg.in/yaml.v3 has no native duration support, so
// without this a delay override would have to be written in raw
// nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a standard time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// SiteConfig holds per-host overrides for crawl behavior. Hosts that
// are known to be slow or rate-limit aggressively can be given a longer
// delay; sites behind logins can be given headers or a cookie.
type SiteConfig struct {
	// Delay overrides the global crawl delay for this host.
	// If zero, the global CrawlDelay is used.
	Delay Duration `yaml:"delay,omitempty"`

	// Depth overrides the global crawl depth for this host.
	// If zero, the global CrawlDepth is used.
	Depth int `yaml:"depth,omitempty"`

	// Cookie is an HTTP cookie to send when crawling this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .sylli-crawl.yaml configuration
// file.
type File struct {
	// Seeds are starting URLs, merged with positional CLI arguments.
	Seeds []string `yaml:"seeds,omitempty"`

	// Sites maps hostnames to their per-host configurations.
	// Keys are bare hostnames (e.g. "example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains the site configuration applied to all hosts
	// unless overridden in the host-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host, merging the
// host-specific configuration over the defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	if siteConfig, ok := cf.Sites[host]; ok {
		if siteConfig.Delay != 0 {
			result.Delay = siteConfig.Delay
		}
		if siteConfig.Depth != 0 {
			result.Depth = siteConfig.Depth
		}
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if len(siteConfig.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			for k, v := range siteConfig.Headers {
				result.Headers[k] = v
			}
		}
	}

	return result
}

// HostDelays extracts every per-host delay override as a map usable by
// the politeness limiter. Hosts without an override are absent.
func (cf *File) HostDelays() map[string]time.Duration {
	if len(cf.Sites) == 0 {
		return nil
	}
	delays := make(map[string]time.Duration)
	for host, sc := range cf.Sites {
		if sc.Delay > 0 {
			delays[host] = sc.Delay.Std()
		}
	}
	if len(delays) == 0 {
		return nil
	}
	return delays
}

// HostDepths extracts every per-host depth override as a map usable by
// the result processor. Hosts without an override are absent.
func (cf *File) HostDepths() map[string]int {
	if len(cf.Sites) == 0 {
		return nil
	}
	depths := make(map[string]int)
	for host, sc := range cf.Sites {
		if sc.Depth > 0 {
			depths[host] = sc.Depth
		}
	}
	if len(depths) == 0 {
		return nil
	}
	return depths
}

// SiteHeaders builds the per-host extra-header lookup used by the
// fetcher. Cookie overrides are folded into a Cookie header. Returns
// nil when no host needs extra headers.
func (cf *File) SiteHeaders() func(host string) map[string]string {
	if cf == nil {
		return nil
	}
	return func(host string) map[string]string {
		sc := cf.GetSiteConfig(host)
		if len(sc.Headers) == 0 && sc.Cookie == "" {
			return nil
		}
		headers := make(map[string]string, len(sc.Headers)+1)
		for k, v := range sc.Headers {
			headers[k] = v
		}
		if sc.Cookie != "" {
			headers["Cookie"] = sc.Cookie
		}
		return headers
	}
}
