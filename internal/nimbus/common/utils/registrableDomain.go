package utils

import "golang.org/x/net/publicsuffix"

// RegistrableDomain returns the eTLD+1 of host, falling back to the host
// itself when the public suffix list cannot answer (IPs, single labels).
func RegistrableDomain(host string) string {
	host = CanonicalHost(host)
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// IsThirdParty reports whether a request to requestHost made by a document on
// documentHost crosses registrable-domain boundaries. An unknown document
// host is treated as first-party.
func IsThirdParty(requestHost, documentHost string) bool {
	if documentHost == "" || requestHost == "" {
		return false
	}
	return RegistrableDomain(requestHost) != RegistrableDomain(documentHost)
}
