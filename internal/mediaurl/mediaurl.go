// Package mediaurl builds and parses the public URLs receipt photos are
// served from.
package mediaurl

import (
	"net/url"
	"strings"
)

const PathPrefix = "/media/"

// Receipt returns the absolute URL of the stored photo for ref.
func Receipt(baseURL, ref string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return PathPrefix + ref
	}
	return baseURL + PathPrefix + ref
}

func ReceiptPreview(baseURL, ref string) string {
	return Receipt(baseURL, ref) + "/preview"
}

// ParseRef accepts either a bare photo reference or a media URL produced by
// Receipt and returns the reference.
func ParseRef(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "/") {
		return raw, true
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	path := u.Path
	if path == "" {
		path = raw
	}

	if !strings.HasPrefix(path, PathPrefix) {
		return "", false
	}

	ref := strings.TrimPrefix(path, PathPrefix)
	ref = strings.TrimSuffix(ref, "/preview")
	if ref == "" || strings.Contains(ref, "/") {
		return "", false
	}

	return ref, true
}
