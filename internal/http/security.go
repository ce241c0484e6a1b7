package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// defaultTrustedProxies are the networks allowed to set forwarding headers.
var defaultTrustedProxies = []*net.IPNet{
	parsecidr("127.0.0.0/8"),    // localhost
	parsecidr("::1/128"),        // localhost
	parsecidr("10.0.0.0/8"),     // private networks
	parsecidr("172.16.0.0/12"),  // private networks
	parsecidr("192.168.0.0/16"), // private networks
	parsecidr("fc00::/7"),       // unique local addresses
}

// parsecidr is a helper to parse CIDR during initialization.
func parsecidr(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// ipExtractor resolves the client address of a request.
type ipExtractor struct {
	trusted []*net.IPNet
}

func (e ipExtractor) isTrusted(ip net.IP) bool {
	for _, network := range e.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address unless the peer is a trusted proxy. In
// that case X-Forwarded-For is walked from the right and the first address
// that is not itself a trusted proxy wins, then X-Real-IP is tried.
func (e ipExtractor) ClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !e.isTrusted(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			ip := net.ParseIP(hop)
			if ip == nil {
				break
			}
			if !e.isTrusted(ip) || i == 0 {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	return directIP
}

// extractClientIP resolves the client address with the default proxies.
func extractClientIP(r *http.Request) string {
	return ipExtractor{trusted: defaultTrustedProxies}.ClientIP(r)
}
