package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"PulseIngest/internal/domain"
	"PulseIngest/internal/ports"
)

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Source      ports.URLSource
	Processed   ports.ProcessedStore
	Items       ports.ItemStore
	Fetcher     ports.ArticleFetcher
	Generator   ports.Generator
	Notifiers   []ports.Notifier
	Logger      *slog.Logger
	SkipDomains []string
	Lookback    time.Duration
	Now         func() time.Time
}

// Pipeline implements the discover, dedupe, fetch, generate, publish workflow.
type Pipeline struct {
	source      ports.URLSource
	processed   ports.ProcessedStore
	items       ports.ItemStore
	fetcher     ports.ArticleFetcher
	generator   ports.Generator
	notifiers   []ports.Notifier
	manifest    *ManifestBuilder
	logger      *slog.Logger
	skipDomains []string
	lookback    time.Duration
	now         func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	skip := deps.SkipDomains
	if skip == nil {
		skip = domain.DefaultSkipDomains
	}

	return &Pipeline{
		source:      deps.Source,
		processed:   deps.Processed,
		items:       deps.Items,
		fetcher:     deps.Fetcher,
		generator:   deps.Generator,
		notifiers:   deps.Notifiers,
		manifest:    NewManifestBuilder(deps.Items, logger, now),
		logger:      logger,
		skipDomains: skip,
		lookback:    deps.Lookback,
		now:         now,
	}
}

// runState is everything one run accumulates. It never outlives Run.
type runState struct {
	report domain.RunReport
	slugs  *domain.SlugGenerator
	now    func() time.Time
}

// Run executes one full pass. Per-URL failures are recorded in the report;
// the returned error is reserved for discovery, processed-set and manifest failures.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	state := &runState{slugs: domain.NewSlugGenerator(p.now), now: p.now}
	state.report.StartedAt = p.now()

	report, err := p.run(ctx, state)
	report.FinishedAt = p.now()
	return report, err
}

func (p *Pipeline) run(ctx context.Context, state *runState) (domain.RunReport, error) {
	report := &state.report

	since := report.StartedAt.Add(-p.lookback)
	candidates, err := p.source.Discover(ctx, since)
	if err != nil {
		return *report, fmt.Errorf("discover urls: %w", err)
	}
	report.Candidates = len(candidates)

	if len(candidates) == 0 {
		report.Status = domain.StatusNoCandidates
		p.logger.Info("no candidate urls in channel", "since", since.Format(time.RFC3339))
		return *report, nil
	}

	processed, err := p.processed.Load(ctx)
	if err != nil {
		return *report, fmt.Errorf("load processed set: %w", err)
	}

	fresh := domain.FilterNew(candidates, processed)
	report.New = len(fresh)
	p.logger.Info("urls discovered", "candidates", len(candidates), "new", len(fresh))

	if len(fresh) == 0 {
		report.Status = domain.StatusNoCandidates
		return *report, nil
	}

	var markErr error
	for i, rawURL := range fresh {
		if ctx.Err() != nil {
			p.logger.Warn("run interrupted", "remaining", len(fresh)-i, "error", ctx.Err())
			break
		}

		p.logger.Info("processing url", "url", rawURL, "position", i+1, "of", len(fresh))
		outcome, slug := p.processURL(ctx, state, rawURL)

		switch outcome {
		case domain.OutcomePublished:
			report.Published = append(report.Published, slug)
		case domain.OutcomeSkipped:
			report.Skipped++
		case domain.OutcomePermanent:
			report.Permanent++
		case domain.OutcomeTransient:
			report.Transient++
		}

		if !outcome.MarksProcessed() {
			continue
		}
		if err := p.processed.Mark(ctx, rawURL); err != nil {
			// Published URLs must always reach the processed set.
			markErr = fmt.Errorf("mark %s processed: %w", rawURL, err)
			p.logger.Error("processed set write failed, stopping run", "url", rawURL, "error", err)
			break
		}
	}

	if len(report.Published) == 0 {
		report.Status = domain.StatusNothingPublished
		p.logger.Warn("nothing published this run",
			"skipped", report.Skipped, "permanent", report.Permanent, "transient", report.Transient)
	} else {
		total, err := p.manifest.Rebuild(ctx)
		if err != nil {
			return *report, errors.Join(markErr, fmt.Errorf("rebuild manifest: %w", err))
		}
		report.ManifestTotal = total
		report.Status = domain.StatusPublished
	}

	p.notify(ctx, *report)
	return *report, markErr
}

// processURL runs one URL inside its own failure boundary.
func (p *Pipeline) processURL(ctx context.Context, state *runState, rawURL string) (outcome domain.Outcome, slug string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("url processing panicked, will retry next run", "url", rawURL, "panic", r)
			outcome, slug = domain.OutcomeTransient, ""
		}
	}()

	if domain.MatchesDomain(rawURL, p.skipDomains) {
		p.logger.Info("skipping non-article platform", "url", rawURL, "host", domain.Hostname(rawURL))
		return domain.OutcomeSkipped, ""
	}

	article, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return p.fail(rawURL, "fetch", err), ""
	}
	if article.Truncated {
		p.logger.Debug("article text truncated", "url", rawURL, "chars", len([]rune(article.Text)))
	}

	analysis, err := p.generator.Generate(ctx, article)
	if err != nil {
		return p.fail(rawURL, "generate", err), ""
	}
	if len(analysis.Missing) > 0 {
		p.logger.Warn("generation response incomplete, using defaults", "url", rawURL, "missing", analysis.Missing)
	}

	item := state.newItem(rawURL, article, analysis)
	if err := p.items.Save(ctx, item); err != nil {
		return p.fail(rawURL, "save", err), ""
	}

	p.logger.Info("published", "url", rawURL, "slug", item.ID, "category", item.Category)
	return domain.OutcomePublished, item.ID
}

func (p *Pipeline) fail(rawURL, step string, err error) domain.Outcome {
	outcome := Classify(err)
	if outcome == domain.OutcomePermanent {
		p.logger.Warn("permanent failure, marking processed", "url", rawURL, "step", step, "error", err)
	} else {
		p.logger.Error("transient failure, will retry next run", "url", rawURL, "step", step, "error", err)
	}
	return outcome
}

func (p *Pipeline) notify(ctx context.Context, report domain.RunReport) {
	if report.New == 0 {
		return
	}
	for _, n := range p.notifiers {
		if err := n.PublishSummary(ctx, report); err != nil {
			p.logger.Warn("run summary not delivered", "error", err)
		}
	}
}

func (s *runState) newItem(rawURL string, article domain.Article, analysis domain.Analysis) domain.PulseItem {
	created := s.now().UTC()

	title := analysis.Title
	if title == "" {
		title = domain.DefaultTitle
	}
	category := analysis.Category
	if category == "" {
		category = domain.DefaultCategory
	}
	keywords := analysis.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	label := article.SiteName
	if label == "" {
		label = domain.Hostname(rawURL)
	}

	return domain.PulseItem{
		ID:          s.slugs.Slug(title),
		Title:       title,
		Category:    category,
		Noise:       analysis.Noise,
		Translation: analysis.Translation,
		Action:      analysis.Action,
		Date:        created.Format(domain.DisplayDateLayout),
		Timestamp:   created.Format(time.RFC3339Nano),
		Keywords:    keywords,
		Sources:     []domain.SourceRef{{Label: label, URL: rawURL}},
	}
}
