package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Article is the readable text extracted from a candidate URL.
type Article struct {
	URL       string
	FinalURL  string
	Title     string
	Text      string
	SiteName  string
	Truncated bool
}

// ErrDisallowed marks URLs that robots.txt forbids fetching for our user agent.
var ErrDisallowed = errors.New("fetch disallowed by robots.txt")

// FetchStatusError reports a non-2xx response from an article host.
type FetchStatusError struct {
	URL        string
	StatusCode int
}

func (e *FetchStatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// permanentFetchStatuses describe URLs that will never yield an article
// (auth walls, paywalls, removed pages, legal blocks).
var permanentFetchStatuses = map[int]bool{
	http.StatusUnauthorized:               true,
	http.StatusForbidden:                  true,
	http.StatusNotFound:                   true,
	http.StatusGone:                       true,
	http.StatusUnavailableForLegalReasons: true,
}

// Permanent reports whether retrying the URL later is pointless.
func (e *FetchStatusError) Permanent() bool {
	return permanentFetchStatuses[e.StatusCode]
}
