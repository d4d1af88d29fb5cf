package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// documentExtensions maps fetch-as-document URL suffixes to the content type
// the response must carry.
var documentExtensions = map[string]string{
	".pdf": "application/pdf",
}

// imageExtensions are never expanded or enqueued by the traversal.
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
}

// NormalizeURL standardizes a URL to avoid fetching duplicates.
// It lowercases the scheme and host, removes default ports and fragments,
// canonicalizes an empty path to "/", and sorts query parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	if u.Path == "" {
		u.Path = "/"
	}
	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

// RegistrableDomain returns the host component used for same-site scoping.
func RegistrableDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	return strings.ToLower(u.Hostname()), nil
}

// SameDomain reports whether rawURL shares the given registrable domain.
func SameDomain(rawURL, domain string) bool {
	host, err := RegistrableDomain(rawURL)
	if err != nil {
		return false
	}
	return host == domain
}

// DocumentContentType returns the expected content type when the URL path has
// a document extension, and whether it has one.
func DocumentContentType(rawURL string) (string, bool) {
	ext := pathExtension(rawURL)
	ct, ok := documentExtensions[ext]
	return ct, ok
}

// IsImageURL reports whether the URL path has an image extension.
func IsImageURL(rawURL string) bool {
	_, ok := imageExtensions[pathExtension(rawURL)]
	return ok
}

func pathExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}
