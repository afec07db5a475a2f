package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"PulseIngest/internal/config"
	"PulseIngest/internal/domain"
	"PulseIngest/internal/infrastructure/fetcher"
	"PulseIngest/internal/infrastructure/llm"
	"PulseIngest/internal/infrastructure/scheduler"
	"PulseIngest/internal/infrastructure/slack"
	"PulseIngest/internal/infrastructure/storage"
	"PulseIngest/internal/infrastructure/telegram"
	"PulseIngest/internal/logging"
	"PulseIngest/internal/ports"
	"PulseIngest/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	items    *storage.FileItemStore
	manifest *usecase.ManifestBuilder
	closers  []io.Closer
}

// New builds the storage side of the application. Chat, fetch and generation
// adapters are only built by Run and Schedule, so manifest maintenance works
// without credentials.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	items := storage.NewFileItemStore(cfg.Storage.ItemsPath(), cfg.Storage.ManifestPath())
	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		items:    items,
		manifest: usecase.NewManifestBuilder(items, baseLogger.With("component", "manifest"), nil),
	}
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) (domain.RunReport, error) {
	pipeline, err := a.pipeline(ctx)
	if err != nil {
		return domain.RunReport{}, err
	}
	return pipeline.Run(ctx)
}

// RebuildManifest regenerates the manifest from the persisted items only.
func (a *Application) RebuildManifest(ctx context.Context) (int, error) {
	return a.manifest.Rebuild(ctx)
}

// Schedule runs the pipeline on the configured cron expression until ctx is done.
func (a *Application) Schedule(ctx context.Context) error {
	if err := a.cfg.ValidateSchedule(); err != nil {
		return err
	}
	pipeline, err := a.pipeline(ctx)
	if err != nil {
		return err
	}

	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.logger.With("component", "scheduler"))
	sched := usecase.NewScheduler(driver, pipeline, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutting down scheduler")
	return sched.Stop(context.WithoutCancel(ctx))
}

// Close releases database handles opened for the processed set.
func (a *Application) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Application) pipeline(ctx context.Context) (*usecase.Pipeline, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	processed, err := a.processedStore(ctx)
	if err != nil {
		return nil, err
	}

	slackOpts := slack.Options{
		Token:             a.cfg.Slack.BotToken,
		Channel:           a.cfg.Slack.Channel,
		APIURL:            a.cfg.Slack.APIURL,
		RequestsPerMinute: a.cfg.Slack.RequestsPerMinute,
		Logger:            a.logger.With("component", "slack"),
	}

	return usecase.NewPipeline(usecase.PipelineDeps{
		Source:    slack.NewSource(slackOpts),
		Processed: processed,
		Items:     a.items,
		Fetcher: fetcher.New(fetcher.Options{
			UserAgent:     a.cfg.Fetch.UserAgent,
			Timeout:       a.cfg.Fetch.Timeout,
			MaxChars:      a.cfg.Fetch.MaxChars,
			RespectRobots: a.cfg.Fetch.RespectRobots,
			Logger:        a.logger.With("component", "fetcher"),
		}),
		Generator:   llm.NewChatGPTClient(a.cfg.LLM, llm.WithLogger(a.logger.With("component", "llm"))),
		Notifiers:   a.notifiers(slackOpts),
		Logger:      a.logger.With("component", "pipeline"),
		SkipDomains: a.cfg.Fetch.SkipDomains,
		Lookback:    a.cfg.Slack.Lookback(),
	}), nil
}

func (a *Application) processedStore(ctx context.Context) (ports.ProcessedStore, error) {
	switch a.cfg.Storage.ProcessedDriver {
	case config.ProcessedDriverSQLite, config.ProcessedDriverPostgres:
		store, err := storage.OpenSQLProcessedStore(ctx, a.cfg.Storage.ProcessedDriver, a.cfg.Storage.ProcessedDSN)
		if err != nil {
			return nil, fmt.Errorf("processed set: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	default:
		return storage.NewFileProcessedStore(a.cfg.Storage.ProcessedPath()), nil
	}
}

func (a *Application) notifiers(slackOpts slack.Options) []ports.Notifier {
	var out []ports.Notifier
	if a.cfg.Slack.NotifyChannel != "" {
		slackOpts.Channel = a.cfg.Slack.NotifyChannel
		out = append(out, slack.NewNotifier(slackOpts))
	}
	if tg := a.cfg.Notifications.Telegram; tg.Enabled() {
		out = append(out, telegram.NewNotifier(tg.BotToken, tg.ChatID, ""))
	}
	return out
}
