package extractor

import (
	"net/url"
	"strings"
)

// excludedExtensions lists path suffixes that never contain crawlable
// markup. Links ending in one of them are discarded during scope checks.
var excludedExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".css", ".js", ".ico",
	".svg", ".zip", ".mp4", ".mp3", ".avi", ".mov", ".wmv", ".flv",
	".webm", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".exe", ".dmg", ".apk", ".deb", ".rpm",
}

// NormalizeURL maps every spelling of a page to one canonical form:
// https is assumed when no scheme is present, the host is lowercased and
// loses its www prefix, trailing slashes collapse and the query and
// fragment are dropped. Unparseable input comes back unchanged.
func NormalizeURL(raw string) string {
	if raw == "" {
		return raw
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")

	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		path = "/"
	}

	return u.Scheme + "://" + host + path
}

// ExtractHost returns the canonical host of a URL, lowercased and without
// the www prefix. It is the identity every scope check compares against.
func ExtractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// InScope reports whether link stays on baseHost or one of its subdomains
// and does not point at a binary or asset file.
func InScope(link, baseHost string) bool {
	if baseHost == "" {
		return false
	}

	u, err := url.Parse(link)
	if err != nil {
		return false
	}

	if u.Scheme == "" || u.Host == "" {
		return false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host != baseHost && !strings.HasSuffix(host, "."+baseHost) {
		return false
	}

	path := strings.ToLower(u.Path)
	for _, ext := range excludedExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}

	return true
}
