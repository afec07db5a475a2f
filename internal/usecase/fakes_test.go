package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"PulseIngest/internal/domain"
)

type fakeSource struct {
	urls  []string
	err   error
	since []time.Time
}

func (f *fakeSource) Discover(_ context.Context, since time.Time) ([]string, error) {
	f.since = append(f.since, since)
	return f.urls, f.err
}

type memProcessed struct {
	mu      sync.Mutex
	lines   []string
	loads   int
	markErr error
}

func (m *memProcessed) Load(context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	set := make(map[string]struct{}, len(m.lines))
	for _, l := range m.lines {
		set[l] = struct{}{}
	}
	return set, nil
}

func (m *memProcessed) Mark(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.lines = append(m.lines, url)
	return nil
}

func (m *memProcessed) has(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lines {
		if l == url {
			return true
		}
	}
	return false
}

type memItems struct {
	mu             sync.Mutex
	records        map[string][]byte
	manifest       *domain.Manifest
	manifestWrites int
}

func newMemItems() *memItems {
	return &memItems{records: map[string][]byte{}}
}

func (m *memItems) Save(_ context.Context, item domain.PulseItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[item.ID]; ok {
		return errors.New("exists")
	}
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	m.records[item.ID] = data
	return nil
}

func (m *memItems) put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = data
}

func (m *memItems) Records(context.Context) ([]domain.StoredRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]domain.StoredRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.StoredRecord{Key: k, Data: m.records[k]})
	}
	return out, nil
}

func (m *memItems) WriteManifest(_ context.Context, manifest domain.Manifest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifest = &manifest
	m.manifestWrites++
	return nil
}

func (m *memItems) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type fetchResult struct {
	article domain.Article
	err     error
	panic   bool
}

type fakeFetcher struct {
	results map[string]fetchResult
	calls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (domain.Article, error) {
	f.calls = append(f.calls, url)
	res, ok := f.results[url]
	if !ok {
		return domain.Article{URL: url, Text: "Body text for " + url, SiteName: domain.Hostname(url)}, nil
	}
	if res.panic {
		panic("extractor blew up")
	}
	return res.article, res.err
}

type fakeGenerator struct {
	analysis domain.Analysis
	err      error
	calls    int
}

func (g *fakeGenerator) Generate(context.Context, domain.Article) (domain.Analysis, error) {
	g.calls++
	return g.analysis, g.err
}

type fakeNotifier struct {
	reports []domain.RunReport
	err     error
}

func (n *fakeNotifier) PublishSummary(_ context.Context, report domain.RunReport) error {
	n.reports = append(n.reports, report)
	return n.err
}

var sampleAnalysis = domain.Analysis{
	Title:       "Acme Blinks on Price",
	Category:    domain.CategorySales,
	Noise:       "Acme cut list prices by 20 percent.",
	Translation: "Buyers now have leverage in renewals.",
	Action:      "I would reopen our two largest renewals this week.",
	Keywords:    []string{"pricing", "renewals", "acme"},
}

// stepClock advances one millisecond per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Millisecond)
		return current
	}
}
