// Package urlutil canonicalizes URLs and classifies them relative to a
// site's root domain. Normalized URLs are the stable keys used for crawl
// deduplication and baseline lookup.
package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Normalize returns the canonical form of rawURL: scheme and host
// lower-cased, fragment dropped, a single trailing slash stripped from
// non-root paths. The query string is preserved. Normalize is
// idempotent: Normalize(Normalize(u)) == Normalize(u).
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("not an absolute URL: %q", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	switch {
	case u.Path == "":
		// Bare host and host-with-slash are the same root page.
		u.Path = "/"
	case len(u.Path) > 1 && strings.HasSuffix(u.Path, "/"):
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""
	}

	return u.String(), nil
}

// MustNormalize is Normalize for inputs already known to be valid URLs,
// returning the input unchanged when parsing fails.
func MustNormalize(rawURL string) string {
	n, err := Normalize(rawURL)
	if err != nil {
		return rawURL
	}
	return n
}

// canonicalHost lower-cases the host and strips a leading "www." so
// www.example.com and example.com compare as the same site.
func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// IsInternal reports whether rawURL belongs to the site rooted at
// rootURL. The comparison is symmetric in the "www." prefix.
func IsInternal(rawURL, rootURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	root, err := url.Parse(rootURL)
	if err != nil {
		return false
	}
	if u.Hostname() == "" || root.Hostname() == "" {
		return false
	}
	return canonicalHost(u) == canonicalHost(root)
}

// skippedSchemes never enter the crawl frontier and are never reported
// as broken links.
var skippedSchemes = map[string]struct{}{
	"mailto":     {},
	"tel":        {},
	"javascript": {},
}

// Crawlable reports whether rawURL may be enqueued on the crawl
// frontier. Non-HTTP schemes such as mailto:, tel: and javascript: are
// filtered out entirely.
func Crawlable(rawURL string) bool {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return false
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if _, skip := skippedSchemes[scheme]; skip {
		return false
	}
	return scheme == "" || scheme == "http" || scheme == "https"
}

// Resolve converts a possibly relative href to an absolute URL against
// the given base page.
func Resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// Hash returns the sha256 hex digest of a URL, used for artifact file
// names and cache keys.
func Hash(rawURL string) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	return hex.EncodeToString(h.Sum(nil))
}
