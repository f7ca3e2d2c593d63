package gatewayauth

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPResolver picks the client address used for rate limiting and
// failed-attempt attribution.
type ClientIPResolver struct {
	headers  []string
	hops     int
	fallback string
}

// NewClientIPResolver builds a resolver from cfg. Header names are
// canonicalised.
func NewClientIPResolver(cfg ClientIPConfig) *ClientIPResolver {
	headers := make([]string, 0, len(cfg.TrustedHeaders))
	for _, h := range cfg.TrustedHeaders {
		if h = strings.TrimSpace(h); h != "" {
			headers = append(headers, http.CanonicalHeaderKey(h))
		}
	}
	fallback := cfg.Fallback
	if fallback == "" {
		fallback = "0.0.0.0"
	}
	return &ClientIPResolver{headers: headers, hops: cfg.ProxyHops, fallback: fallback}
}

// Resolve checks the trusted headers in order, then RemoteAddr, then the
// fallback. Values that do not parse as an IP are skipped.
func (c *ClientIPResolver) Resolve(r *http.Request) string {
	if r == nil {
		return c.fallback
	}
	for _, h := range c.headers {
		raw := r.Header.Get(h)
		if raw == "" {
			continue
		}
		if h == "X-Forwarded-For" {
			raw = c.forwardedEntry(r.Header.Values(h))
		}
		if ip, ok := parseIP(raw); ok {
			return ip
		}
	}

	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if ip, ok := parseIP(host); ok {
		return ip
	}
	return c.fallback
}

// forwardedEntry flattens repeated X-Forwarded-For headers and picks the
// configured hop. It returns "" when the chain is shorter than the hop
// count, so the header is skipped.
func (c *ClientIPResolver) forwardedEntry(values []string) string {
	var parts []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
	}
	switch {
	case len(parts) == 0:
		return ""
	case c.hops <= 0:
		return parts[0]
	case c.hops > len(parts):
		// Fewer entries than trusted proxies: every entry may be forged.
		return ""
	}
	return parts[len(parts)-c.hops]
}

func parseIP(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
