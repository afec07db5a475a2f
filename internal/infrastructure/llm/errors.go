package llm

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx response from the generation provider.
type APIError struct {
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("llm: unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsRateLimited reports whether err is a 429 from the provider.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

var (
	reRetryDelayField = regexp.MustCompile(`"retry_?[Dd]elay"\s*:\s*"?(\d+(?:\.\d+)?)s?"?`)
	reTryAgainIn      = regexp.MustCompile(`(?i)try again in (\d+(?:\.\d+)?)\s*(ms|s|seconds?)\b`)
)

// parseRetryAfter reads the provider's suggested wait from the Retry-After
// header or, failing that, from hints embedded in the error body.
// It returns 0 when no hint is present.
func parseRetryAfter(header http.Header, body string, now time.Time) time.Duration {
	if v := strings.TrimSpace(header.Get("Retry-After")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
		if at, err := http.ParseTime(v); err == nil {
			if d := at.Sub(now); d > 0 {
				return d
			}
		}
	}

	if m := reRetryDelayField.FindStringSubmatch(body); m != nil {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}

	if m := reTryAgainIn.FindStringSubmatch(body); m != nil {
		if n, err := strconv.ParseFloat(m[1], 64); err == nil {
			if strings.EqualFold(m[2], "ms") {
				return time.Duration(n * float64(time.Millisecond))
			}
			return time.Duration(n * float64(time.Second))
		}
	}

	return 0
}
