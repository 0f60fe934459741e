package utils

import (
	"net/url"
	"strings"
)

// ShortenURL reduces a URL to a stable form used for offline cache keys.
// The scheme, a leading "www.", default ports, the fragment and trailing
// slashes are dropped; the query is kept with its keys sorted. Input that
// does not parse is returned trimmed and lowercased.
func ShortenURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(raw), "/")
	}

	host := CanonicalHost(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	port := u.Port()
	scheme := strings.ToLower(u.Scheme)
	if port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host += ":" + port
	}

	var b strings.Builder
	b.WriteString(host)
	b.WriteString(strings.TrimRight(u.EscapedPath(), "/"))
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.Query().Encode())
	}
	return b.String()
}
