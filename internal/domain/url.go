package domain

import (
	"net/url"
	"strings"
)

// DefaultSkipDomains are platforms whose pages cannot be read as plain articles.
var DefaultSkipDomains = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"tiktok.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"facebook.com",
	"fb.watch",
	"instagram.com",
	"threads.net",
	"reddit.com",
}

// Hostname returns the lowercased host of raw without a leading "www.".
func Hostname(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// MatchesDomain reports whether raw is hosted on one of domains or a subdomain of one.
func MatchesDomain(raw string, domains []string) bool {
	host := Hostname(raw)
	if host == "" {
		return false
	}
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// FilterNew returns candidates not present in processed, preserving order.
func FilterNew(candidates []string, processed map[string]struct{}) []string {
	fresh := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, done := processed[c]; done {
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh
}
