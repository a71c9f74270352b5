package ops

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// AllowList holds the networks permitted to reach the ops listener.
type AllowList struct {
	prefixes []netip.Prefix
}

// ParseAllowList accepts CIDRs or bare addresses. An empty list allows everyone.
func ParseAllowList(entries []string) (*AllowList, error) {
	a := &AllowList{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid address %q: %w", entry, err)
			}
			a.prefixes = append(a.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", entry, err)
		}
		a.prefixes = append(a.prefixes, prefix.Masked())
	}
	return a, nil
}

// Allows reports whether ip falls within one of the configured networks.
func (a *AllowList) Allows(ip string) bool {
	if len(a.prefixes) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range a.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Middleware rejects requests whose remote address is not allowed.
func (a *AllowList) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !a.Allows(host) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
