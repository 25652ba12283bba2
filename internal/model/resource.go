package model

// ResourceType categorizes what kind of content a fetched URL points at.
// The category decides how (or whether) the page body is parsed and is
// included in the final output for downstream consumers.
type ResourceType string

const (
	// TypeArticle is a regular HTML page.
	TypeArticle ResourceType = "article"

	// TypeVideo is a video page (e.g. a YouTube or Vimeo watch URL).
	// Video pages are recorded but their bodies are not link-extracted.
	TypeVideo ResourceType = "video"

	// TypeDocument is a binary document such as a PDF. Document bodies
	// are fetched (and hashed for change detection) but never parsed
	// for links.
	TypeDocument ResourceType = "document"

	// TypeUnknown is content we could not classify.
	TypeUnknown ResourceType = "unknown"
)

// Resource is the record handed to the output sink for every
// successfully fetched page. This is the unit downstream systems
// consume; internal crawl bookkeeping (depth, retries) stays out of it.
type Resource struct {
	// URL is the fetched URL.
	URL string `json:"url"`

	// Title is the page title, empty if none was found.
	Title string `json:"title"`

	// Author is who published the resource. For plain web pages this
	// is the hostname; richer sources may override it.
	Author string `json:"author"`

	// Type is the content category.
	Type ResourceType `json:"type"`

	// Source is the site the resource came from, normally the host.
	Source string `json:"source"`
}
