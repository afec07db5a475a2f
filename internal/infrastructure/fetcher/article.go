package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"

	"PulseIngest/internal/domain"
	"PulseIngest/internal/ports"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultMaxChars = 12000
	maxBodyBytes    = 5 << 20
)

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reBlockOpen  = regexp.MustCompile(`(?i)<(p|div|br|li|td|tr|h[1-6]|blockquote|section|article)(\s[^>]*)?/?>`)
	reBlockClose = regexp.MustCompile(`(?i)</(p|div|li|td|tr|h[1-6]|blockquote|section|article)>`)
)

// Options tune an ArticleFetcher. Zero values fall back to defaults.
type Options struct {
	UserAgent     string
	Timeout       time.Duration
	MaxChars      int
	RespectRobots bool
	Client        *http.Client
	Logger        *slog.Logger
}

// ArticleFetcher downloads a page and reduces it to readable plain text.
type ArticleFetcher struct {
	client    *http.Client
	userAgent string
	maxChars  int
	robots    *robotsPolicy
	logger    *slog.Logger
}

var _ ports.ArticleFetcher = (*ArticleFetcher)(nil)

// New builds a fetcher from opts.
func New(opts Options) *ArticleFetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "PulseIngest/1.0"
	}

	f := &ArticleFetcher{
		client:    client,
		userAgent: ua,
		maxChars:  maxChars,
		logger:    opts.Logger,
	}
	if opts.RespectRobots {
		f.robots = newRobotsPolicy(client, ua)
	}
	return f
}

// Fetch returns the article text for rawURL. Non-2xx responses come back as
// *domain.FetchStatusError; robots.txt refusals wrap domain.ErrDisallowed.
func (f *ArticleFetcher) Fetch(ctx context.Context, rawURL string) (domain.Article, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || pageURL.Host == "" {
		return domain.Article{}, fmt.Errorf("invalid article url %q", rawURL)
	}

	if f.robots != nil && !f.robots.allowed(ctx, pageURL) {
		return domain.Article{}, fmt.Errorf("fetch %s: %w", rawURL, domain.ErrDisallowed)
	}

	raw, finalURL, contentType, err := f.download(ctx, rawURL)
	if err != nil {
		return domain.Article{}, err
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	var title, text string
	switch {
	case mediaType == "text/plain":
		text = string(raw)
	case mediaType == "" || strings.Contains(mediaType, "html") || strings.Contains(mediaType, "xml"):
		title, text, err = extractText(raw, finalURL)
		if err != nil {
			return domain.Article{}, fmt.Errorf("extract %s: %w", rawURL, err)
		}
	default:
		return domain.Article{}, fmt.Errorf("fetch %s: unsupported content type %q", rawURL, mediaType)
	}

	text = normalizeText(text)
	if text == "" {
		return domain.Article{}, fmt.Errorf("extract %s: no readable text", rawURL)
	}

	text, truncated := capText(text, f.maxChars)
	f.debug("article fetched", "url", rawURL, "chars", utf8.RuneCountInString(text), "truncated", truncated)

	return domain.Article{
		URL:       rawURL,
		FinalURL:  finalURL.String(),
		Title:     normalizeText(title),
		Text:      text,
		SiteName:  domain.Hostname(finalURL.String()),
		Truncated: truncated,
	}, nil
}

func (f *ArticleFetcher) download(ctx context.Context, rawURL string) ([]byte, *url.URL, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, "", fmt.Errorf("request article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, nil, "", &domain.FetchStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), contentType)
	if err != nil {
		body = io.LimitReader(resp.Body, maxBodyBytes)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, "", fmt.Errorf("read article: %w", err)
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}
	return raw, finalURL, contentType, nil
}

// extractText prefers the readability main-content view and falls back to the
// whole body minus chrome when readability finds nothing.
func extractText(raw []byte, pageURL *url.URL) (string, string, error) {
	var title, text string

	if article, err := readability.FromReader(bytes.NewReader(raw), pageURL); err == nil {
		title = article.Title
		if strings.TrimSpace(article.Content) != "" {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(spaceBlocks(article.Content)))
			if err == nil {
				text = doc.Text()
			}
		}
	}

	if strings.TrimSpace(text) != "" {
		return title, text, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(spaceBlocks(string(raw)))))
	if err != nil {
		return "", "", fmt.Errorf("parse document: %w", err)
	}
	if title == "" {
		title = doc.Find("title").First().Text()
	}
	doc.Find("script, style, noscript, nav, header, footer, aside, form, svg").Remove()
	return title, doc.Find("body").Text(), nil
}

func spaceBlocks(html string) string {
	html = reBlockOpen.ReplaceAllString(html, " $0")
	return reBlockClose.ReplaceAllString(html, "$0 ")
}

func normalizeText(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// capText bounds prompt size; the cut never splits a rune.
func capText(text string, maxChars int) (string, bool) {
	if utf8.RuneCountInString(text) <= maxChars {
		return text, false
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxChars])), true
}

func (f *ArticleFetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
