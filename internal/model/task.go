package model

// Task is a single unit of crawl work: one URL scheduled for fetching.
//
// A Task is created when a link passes normalization and the seen-set
// admission gate. It is immutable once enqueued and is consumed exactly
// once by a fetch worker.
type Task struct {
	// Key is the canonical form of the URL, used for deduplication.
	// Two tasks with the same Key refer to the same page.
	Key string

	// RawURL is the URL as discovered, before normalization.
	// Workers fetch this form because some servers are sensitive to
	// the exact query-parameter order they emitted.
	RawURL string

	// Host is the hostname the URL points at. The politeness gate
	// keys its per-host state on this value.
	Host string

	// Depth is the link distance from the seed that discovered this
	// task. Seeds have depth 0.
	Depth int

	// Priority orders tasks within a host's queue. Lower values are
	// fetched first. By default this equals Depth, so shallow pages
	// are preferred.
	Priority int
}

// NewTask creates a Task with priority equal to its depth.
func NewTask(key, rawURL, host string, depth int) Task {
	return Task{
		Key:      key,
		RawURL:   rawURL,
		Host:     host,
		Depth:    depth,
		Priority: depth,
	}
}
