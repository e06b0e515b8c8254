package tenant

import (
	"net"
	"strings"
)

// DefaultReservedSubdomains are labels that never name a school.
var DefaultReservedSubdomains = []string{"www", "api", "admin", "platform", "app"}

// StripPort removes any :port suffix from a Host header value.
func StripPort(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// SubdomainFromHost returns the school subdomain carried by host, or "" when the
// host has fewer than three labels or its first label is reserved.
func SubdomainFromHost(host string, reserved []string) string {
	host = strings.ToLower(StripPort(host))
	host = strings.TrimSuffix(host, ".")
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}

	labels := strings.Split(host, ".")
	if len(labels) < 3 || labels[0] == "" {
		return ""
	}

	for _, r := range reserved {
		if labels[0] == r {
			return ""
		}
	}
	return labels[0]
}

// IsLoopbackHost reports whether host names the local machine. Development
// overrides are only honoured for such hosts.
func IsLoopbackHost(host string) bool {
	host = strings.ToLower(StripPort(host))
	host = strings.Trim(host, "[]")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
