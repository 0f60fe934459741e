package utils

import (
	"net/url"
	"strings"
)

// CanonicalHost returns a host name in canonical form:
// - Lowercased
// - Trimmed of surrounding whitespace
// - No trailing dots
func CanonicalHost(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// HostOf extracts the canonical host from a raw URL. It returns "" when the
// URL cannot be parsed or carries no host (file:, about:, data:).
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return CanonicalHost(u.Hostname())
}
