package core

import (
	"net/url"
	"strings"
)

// DefaultAllowedHosts are the remote hosts permitted when a config does
// not declare its own allow-list. Hosts are matched case-insensitively,
// by exact match or dotted suffix (so "github.enterprise.com" is not
// accidentally allowed by a bare "github.com" entry, but "sub.github.com"
// is).
var DefaultAllowedHosts = []string{
	"github.com",
	"gitlab.com",
	"bitbucket.org",
}

// ExtractHost pulls the hostname (without port) out of a repo URL,
// handling both "scheme://host/path" and scp-style "user@host:path"
// forms. Returns "" if the host cannot be determined.
func ExtractHost(repoURL string) string {
	if strings.Contains(repoURL, "://") {
		u, err := url.Parse(repoURL)
		if err != nil {
			return ""
		}
		return strings.ToLower(stripPort(u.Host))
	}
	if at := strings.Index(repoURL, "@"); at != -1 {
		rest := repoURL[at+1:]
		if colon := strings.Index(rest, ":"); colon != -1 {
			return strings.ToLower(rest[:colon])
		}
	}
	return ""
}

func stripPort(host string) string {
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}

// HostAllowed reports whether host matches one of allowed, either
// exactly or as a dotted suffix.
func HostAllowed(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, a := range allowed {
		a = strings.ToLower(a)
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}
