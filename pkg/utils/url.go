package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query keys that never change the resource a URL points at.
var trackingParams = map[string]bool{
	"gclid": true, "fbclid": true, "msclkid": true, "mc_cid": true, "mc_eid": true,
	"mkt_tok": true, "trk": true, "trackingid": true, "refid": true, "from": true,
}

// HashString creates a SHA256 hash of the given parts joined by "|".
// This is useful for creating consistent, safe keys for Redis and dedup maps.
func HashString(parts ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))
}

// HashURL hashes the canonical form of a URL.
func HashURL(rawURL string) string {
	return HashString(CanonicalURL(rawURL))
}

// CanonicalURL lowercases scheme and host, drops the fragment, removes tracking
// parameters, sorts the query and trims a trailing slash.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			q.Del(k)
		}
	}
	for k := range q {
		sort.Strings(q[k])
	}
	u.RawQuery = q.Encode()

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	return u.String()
}

// ToAbsoluteURL converts a relative URL to an absolute URL given a base URL.
func ToAbsoluteURL(base *url.URL, relative string) (string, error) {
	relURL, err := url.Parse(strings.TrimSpace(relative))
	if err != nil {
		return "", err
	}
	if base == nil {
		return relURL.String(), nil
	}
	return base.ResolveReference(relURL).String(), nil
}

// Host returns the lowercased hostname of rawURL, or "" when it cannot be parsed.
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

var shortenerHosts = map[string]bool{
	"bit.ly": true, "tinyurl.com": true, "goo.gl": true, "t.co": true, "ow.ly": true,
	"is.gd": true, "buff.ly": true, "rebrand.ly": true, "cutt.ly": true, "shorturl.at": true,
	"tiny.cc": true, "rb.gy": true,
}

// IsShortenedURL reports whether rawURL points at a known link shortener.
func IsShortenedURL(rawURL string) bool {
	return shortenerHosts[strings.TrimPrefix(Host(rawURL), "www.")]
}

// ShortenerHosts lists the known link-shortener hosts.
func ShortenerHosts() []string {
	out := make([]string, 0, len(shortenerHosts))
	for h := range shortenerHosts {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
