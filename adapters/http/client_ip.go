package authhttp

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPFunc picks the client address used as the rate limit key and in
// request logs. An empty result means unknown; unknown clients are not limited.
type ClientIPFunc func(r *http.Request) string

// PeerClientIP uses the TCP peer address, but only when it is public. A
// private peer is almost always a proxy or ingress, and limiting it would
// throttle every caller behind it at once.
func PeerClientIP() ClientIPFunc {
	return func(r *http.Request) string {
		a, ok := peerAddr(r)
		if !ok || !isPublicAddr(a) {
			return ""
		}
		return a.String()
	}
}

// TrustedProxyClientIP reads CF-Connecting-IP, then the left-most
// X-Forwarded-For entry, when the peer is inside one of trusted.
// Otherwise it behaves like PeerClientIP.
func TrustedProxyClientIP(trusted []netip.Prefix) ClientIPFunc {
	fallback := PeerClientIP()
	return func(r *http.Request) string {
		peer, ok := peerAddr(r)
		if !ok {
			return ""
		}
		if !inAny(trusted, peer) {
			return fallback(r)
		}
		if ip := publicHeaderIP(r.Header.Get("CF-Connecting-IP")); ip != "" {
			return ip
		}
		xff := r.Header.Get("X-Forwarded-For")
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		if ip := publicHeaderIP(xff); ip != "" {
			return ip
		}
		return fallback(r)
	}
}

func peerAddr(r *http.Request) (netip.Addr, bool) {
	if r == nil || r.RemoteAddr == "" {
		return netip.Addr{}, false
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

func publicHeaderIP(v string) string {
	a, err := netip.ParseAddr(strings.TrimSpace(v))
	if err != nil || !isPublicAddr(a) {
		return ""
	}
	return a.Unmap().String()
}

func inAny(prefixes []netip.Prefix, a netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func isPublicAddr(a netip.Addr) bool {
	if !a.IsValid() {
		return false
	}
	return !(a.IsLoopback() || a.IsPrivate() || a.IsLinkLocalUnicast() || a.IsLinkLocalMulticast() ||
		a.IsMulticast() || a.IsUnspecified())
}
