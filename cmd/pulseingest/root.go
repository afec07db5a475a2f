package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"PulseIngest/internal/app"
	"PulseIngest/internal/config"
	"PulseIngest/internal/logging"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pulseingest",
		Short:         "Turn links shared in Slack into Market Pulse items",
		Long:          "pulseingest reads recent links from a Slack channel, summarizes each new article with a text-generation model and rebuilds the pulse manifest.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runOnce,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default $PULSE_CONFIG)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once (default)",
		Args:  cobra.NoArgs,
		RunE:  runOnce,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "rebuild-manifest",
		Short: "Regenerate the manifest from persisted items",
		Args:  cobra.NoArgs,
		RunE:  rebuildManifest,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on the configured cron expression",
		Args:  cobra.NoArgs,
		RunE:  schedule,
	})

	return rootCmd
}

func setup() (*app.Application, *slog.Logger) {
	cfg := config.Load(cfgFile)
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	return app.New(cfg, logger), logger
}

func runOnce(cmd *cobra.Command, _ []string) error {
	application, logger := setup()
	defer application.Close()

	report, err := application.Run(cmd.Context())
	if err != nil {
		logger.Error("pipeline failed", "error", err)
		return err
	}

	logger.Info("pipeline finished",
		"status", report.Status,
		"candidates", report.Candidates,
		"new", report.New,
		"published", len(report.Published),
		"skipped", report.Skipped,
		"permanent", report.Permanent,
		"transient", report.Transient,
		"manifest_total", report.ManifestTotal,
	)
	fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
	return nil
}

func rebuildManifest(cmd *cobra.Command, _ []string) error {
	application, logger := setup()
	defer application.Close()

	total, err := application.RebuildManifest(cmd.Context())
	if err != nil {
		logger.Error("manifest rebuild failed", "error", err)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "manifest holds %d items\n", total)
	return nil
}

func schedule(cmd *cobra.Command, _ []string) error {
	application, logger := setup()
	defer application.Close()

	if err := application.Schedule(cmd.Context()); err != nil {
		logger.Error("scheduler stopped", "error", err)
		return err
	}
	return nil
}
