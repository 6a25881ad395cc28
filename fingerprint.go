package spindle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// FingerprintFunc derives the canonical identity key of a request. One such
// function serves a whole crawl, for scheduler dedup and cache keys alike.
// It must be pure: the same request always maps to the same key.
type FingerprintFunc func(*Request) string

// DefaultFingerprint hashes the canonical URL, the method, and a digest of
// the body into a fixed-width hex key. Requests differing only in query
// parameter order, fragment, or an explicit default port fingerprint
// identically; method and body differences always separate them.
func DefaultFingerprint(req *Request) string {
	canonical, err := canonicalURL(req.URL)
	if err != nil {
		// Unparseable URLs still need a stable identity; hash them as-is.
		canonical = strings.TrimSpace(req.URL)
	}
	body := sha256.Sum256(req.Body)
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%x", req.method(), canonical, body)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalURL normalizes a URL for identity comparison: scheme and host
// lower-cased, default ports dropped, query parameters sorted by key,
// fragment removed.
func canonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	switch u.Scheme {
	case "http":
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case "https":
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.RawQuery = u.Query().Encode()
	return u.String(), nil
}
