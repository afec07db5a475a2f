package domain

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxSlugBase = 60

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// SlugGenerator derives item identifiers from titles. The timestamp suffix is
// strictly increasing per generator, so equal titles never share a slug.
type SlugGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewSlugGenerator uses now as the clock; nil means time.Now.
func NewSlugGenerator(now func() time.Time) *SlugGenerator {
	if now == nil {
		now = time.Now
	}
	return &SlugGenerator{now: now}
}

// Slug returns "<normalized-title>-<unix-nanos>".
func (g *SlugGenerator) Slug(title string) string {
	g.mu.Lock()
	stamp := g.now().UnixNano()
	if stamp <= g.last {
		stamp = g.last + 1
	}
	g.last = stamp
	g.mu.Unlock()

	return NormalizeSlug(title) + "-" + strconv.FormatInt(stamp, 10)
}

// NormalizeSlug lowercases title into hyphen-separated alphanumerics.
func NormalizeSlug(title string) string {
	base := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	base = strings.Trim(base, "-")
	if len(base) > maxSlugBase {
		base = strings.TrimRight(base[:maxSlugBase], "-")
	}
	if base == "" {
		return "pulse"
	}
	return base
}
