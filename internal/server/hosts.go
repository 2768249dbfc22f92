package server

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// HostAllowlist rejects requests whose Host header is not a loopback name,
// an IP literal, or listed in allowed. Entries beginning with "." match the
// domain itself and any subdomain.
func HostAllowlist(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hostAllowed(r.Host, allowed) {
				msg := fmt.Sprintf("Blocked request. This host (%q) is not allowed.", hostname(r.Host))
				http.Error(w, msg, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hostname(hostport string) string {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return strings.TrimSuffix(strings.ToLower(host), ".")
}

func hostAllowed(hostport string, allowed []string) bool {
	host := hostname(hostport)
	switch {
	case host == "":
		// HTTP/1.0 clients may omit Host.
		return true
	case host == "localhost", strings.HasSuffix(host, ".localhost"):
		return true
	case net.ParseIP(host) != nil:
		return true
	}

	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, ".") {
			if host == entry[1:] || strings.HasSuffix(host, entry) {
				return true
			}
			continue
		}
		if host == entry {
			return true
		}
	}
	return false
}
