package slack

import (
	"regexp"
	"strings"

	"PulseIngest/internal/domain"
)

var (
	// <https://example.com|label> or <https://example.com>
	reMarkupLink = regexp.MustCompile(`<(https?://[^|>\s]+)(?:\|[^>]*)?>`)
	reBareLink   = regexp.MustCompile(`https?://[^\s<>|"]+`)
)

// chatDomains are the chat platform's own hosts; links to them are noise.
var chatDomains = []string{"slack.com", "slack-edge.com", "slack-files.com"}

// ExtractURLs returns the unique article-candidate URLs in message texts,
// in first-seen order.
func ExtractURLs(texts []string) []string {
	seen := map[string]struct{}{}
	var urls []string

	add := func(raw string) {
		u := cleanURL(raw)
		if u == "" || domain.MatchesDomain(u, chatDomains) {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	for _, text := range texts {
		for _, m := range reMarkupLink.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
		// Bare links only exist outside markup.
		for _, raw := range reBareLink.FindAllString(reMarkupLink.ReplaceAllString(text, " "), -1) {
			add(raw)
		}
	}
	return urls
}

// closers maps a trailing bracket to its opener.
var closers = map[byte]byte{')': '(', ']': '[', '}': '{'}

func cleanURL(raw string) string {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "&amp;", "&")
	raw = trimTrailing(raw)
	if domain.Hostname(raw) == "" {
		return ""
	}
	return raw
}

// trimTrailing drops sentence punctuation after a link. A closing bracket is
// dropped only while it has no opener inside the URL, so paths such as
// /wiki/Go_(language) survive.
func trimTrailing(raw string) string {
	for raw != "" {
		last := raw[len(raw)-1]
		if opener, ok := closers[last]; ok {
			if strings.Count(raw, string(opener)) >= strings.Count(raw, string(last)) {
				return raw
			}
		} else if !strings.ContainsRune(".,;:!?'\"", rune(last)) {
			return raw
		}
		raw = raw[:len(raw)-1]
	}
	return raw
}
