package processor

import (
	"mime"
	"net/url"
	"strings"

	"github.com/syllime/sylli-crawl/internal/model"
)

// videoHosts are hosts whose pages are video watch pages. Their bodies
// are rendered by scripts, so link extraction on the raw HTML is
// pointless; we record the resource and stop there.
var videoHosts = map[string]struct{}{
	"www.youtube.com": {},
	"youtube.com":     {},
	"youtu.be":        {},
	"www.vimeo.com":   {},
	"vimeo.com":       {},
}

// Classify decides what kind of resource a fetched URL is, from its
// URL and the Content-Type the server reported.
func Classify(rawURL, contentType string) model.ResourceType {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	mediaType = strings.ToLower(mediaType)

	switch {
	case mediaType == "application/pdf":
		return model.TypeDocument
	case strings.HasPrefix(mediaType, "video/"):
		return model.TypeVideo
	}

	if u, err := url.Parse(rawURL); err == nil {
		host := strings.ToLower(u.Hostname())
		if _, ok := videoHosts[host]; ok {
			return model.TypeVideo
		}
		if strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
			return model.TypeDocument
		}
	}

	switch {
	case strings.HasPrefix(mediaType, "text/html"),
		strings.HasPrefix(mediaType, "application/xhtml"):
		return model.TypeArticle
	case mediaType == "":
		// Servers that omit Content-Type are almost always HTML.
		return model.TypeArticle
	}
	return model.TypeUnknown
}

// parseable reports whether a resource type's body should go through
// the HTML parser.
func parseable(t model.ResourceType) bool {
	return t == model.TypeArticle
}
