package router

import (
	"net/url"
	"strings"

	"github.com/polyquery/metasearch/provider"
)

// trackingParams are query parameters stripped before canonicalization.
// utm_* parameters are matched by prefix.
var trackingParams = map[string]bool{
	"gclid":   true,
	"fbclid":  true,
	"msclkid": true,
	"yclid":   true,
	"igshid":  true,
	"mc_cid":  true,
	"mc_eid":  true,
	"ref_src": true,
}

// CanonicalURL normalizes a result URL into its deduplication key:
// lowercased host+path+query with tracking parameters removed. URLs that
// do not parse fall back to their raw lowercased string.
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || trackingParams[lower] {
			q.Del(key)
		}
	}

	key := strings.ToLower(u.Host + u.Path)
	if encoded := q.Encode(); encoded != "" {
		key += "?" + strings.ToLower(encoded)
	}
	return key
}

// Dedupe drops results whose canonical URL has already been seen. The
// first occurrence wins; input order is preserved. Returns the kept
// results and the number dropped.
func Dedupe(results []provider.Result) ([]provider.Result, int) {
	seen := make(map[string]bool, len(results))
	kept := make([]provider.Result, 0, len(results))
	for _, r := range results {
		key := CanonicalURL(r.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, r)
	}
	return kept, len(results) - len(kept)
}
