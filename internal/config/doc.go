// Package config provides configuration structures and utilities for
// the crawler. It defines the crawl, politeness, and report options,
// the YAML config file format with per-host overrides, and the XDG
// directory helpers used for persistent state.
package config
