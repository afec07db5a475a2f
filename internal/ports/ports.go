package ports

import (
	"context"
	"time"

	"PulseIngest/internal/domain"
)

// URLSource discovers candidate URLs posted since the given moment.
type URLSource interface {
	Discover(ctx context.Context, since time.Time) ([]string, error)
}

// ProcessedStore is the durable processed-URL set. Only a membership snapshot
// and append are required.
type ProcessedStore interface {
	Load(ctx context.Context) (map[string]struct{}, error)
	Mark(ctx context.Context, url string) error
}

// ItemStore persists pulse items and the manifest derived from them.
type ItemStore interface {
	Save(ctx context.Context, item domain.PulseItem) error
	Records(ctx context.Context) ([]domain.StoredRecord, error)
	WriteManifest(ctx context.Context, manifest domain.Manifest) error
}

// ArticleFetcher downloads a page and extracts its readable text.
type ArticleFetcher interface {
	Fetch(ctx context.Context, url string) (domain.Article, error)
}

// Generator asks the text-generation model for a structured analysis.
type Generator interface {
	Generate(ctx context.Context, article domain.Article) (domain.Analysis, error)
}

// Notifier delivers a run summary to a human channel (Slack, Telegram, etc.).
type Notifier interface {
	PublishSummary(ctx context.Context, report domain.RunReport) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
