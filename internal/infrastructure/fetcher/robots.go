package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// robotsPolicy caches one robots.txt group per host. Any failure to load
// robots.txt allows the fetch.
type robotsPolicy struct {
	client    *http.Client
	userAgent string

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

func newRobotsPolicy(client *http.Client, userAgent string) *robotsPolicy {
	return &robotsPolicy{
		client:    client,
		userAgent: userAgent,
		groups:    map[string]*robotstxt.Group{},
	}
}

func (p *robotsPolicy) allowed(ctx context.Context, pageURL *url.URL) bool {
	key := pageURL.Scheme + "://" + pageURL.Host

	p.mu.Lock()
	group, cached := p.groups[key]
	p.mu.Unlock()

	if !cached {
		group = p.load(ctx, key)
		p.mu.Lock()
		p.groups[key] = group
		p.mu.Unlock()
	}

	if group == nil {
		return true
	}
	path := pageURL.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (p *robotsPolicy) load(ctx context.Context, origin string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/robots.txt", origin), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	// robotstxt treats 5xx as disallow-all; a flaky robots.txt must not
	// turn into a permanent skip.
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data.FindGroup(p.userAgent)
}
