// Package safeurl classifies candidate URLs before any outbound fetch is
// issued. The check is literal-based (no DNS resolution), which leaves DNS
// rebinding uncovered; callers must not treat an "allowed" verdict as proof
// the target is public.
package safeurl

import (
	"net/netip"
	"net/url"
	"regexp"
	"strings"
)

var dottedQuadRe = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

// Blocked IPv4 ranges beyond what netip classifies directly.
var blockedV4Prefixes = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("255.0.0.0/8"),
}

// IsBlocked reports whether raw must not be fetched. It never panics or
// errors; anything that cannot be parsed confidently is blocked.
func IsBlocked(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return true
	}

	// Hostname() lowered and with IPv6 brackets already stripped.
	host := strings.ToLower(u.Hostname())
	if host == "" || host == "localhost" {
		return true
	}

	if dottedQuadRe.MatchString(host) {
		addr, err := netip.ParseAddr(host)
		if err != nil {
			// Looks like an IPv4 literal but has an out-of-range octet.
			return true
		}
		return v4Blocked(addr)
	}

	if strings.Contains(host, ":") {
		addr, err := netip.ParseAddr(host)
		if err != nil {
			return true
		}
		if addr.Is4In6() {
			// IPv4-mapped addresses reach IPv4 endpoints; apply the
			// IPv4 ranges to the embedded address.
			return v4Blocked(addr.Unmap())
		}
		return addr.IsLoopback() ||
			addr.IsPrivate() || // fc00::/7 unique-local
			addr.IsLinkLocalUnicast() ||
			addr.IsLinkLocalMulticast() ||
			addr.IsMulticast() ||
			addr.IsUnspecified()
	}

	return false
}

func v4Blocked(addr netip.Addr) bool {
	for _, p := range blockedV4Prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
