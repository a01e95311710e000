package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ClientIPResolver finds the address a request came from. The zero value
// trusts no proxy and always answers the socket address.
type ClientIPResolver struct {
	trusted []*net.IPNet
}

// NewClientIPResolver trusts forwarding headers set by peers inside
// trustedCIDRs.
func NewClientIPResolver(trustedCIDRs []string) (*ClientIPResolver, error) {
	res := &ClientIPResolver{}
	for _, cidr := range trustedCIDRs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", cidr, err)
		}
		res.trusted = append(res.trusted, n)
	}
	return res, nil
}

// ClientIP returns the socket address unless it belongs to a trusted proxy.
// Behind trusted proxies, X-Forwarded-For is walked from the right and the
// first hop outside the trusted ranges wins; X-Real-IP is the fallback.
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	remote := remoteHost(r)
	if !c.isTrusted(net.ParseIP(remote)) {
		return remote
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		ip := net.ParseIP(hop)
		if ip == nil {
			break
		}
		if !c.isTrusted(ip) {
			return ip.String()
		}
	}

	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return remote
}

func (c *ClientIPResolver) isTrusted(ip net.IP) bool {
	if c == nil || ip == nil {
		return false
	}
	for _, n := range c.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
