package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"PulseIngest/internal/domain"
)

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.yaml")
	raw := `
slack:
  channel: "#pulse-feed"
  lookbackDays: 7
fetch:
  timeout: 5s
  skipDomains: ["example.org"]
llm:
  model: local-model
  requestDelay: 250ms
storage:
  dataDir: /srv/pulse
  processedDriver: SQLite
  processedDsn: /srv/pulse/processed.db
scheduler:
  cronExpression: "*/30 * * * *"
  timezone: Europe/Berlin
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(slackTokenEnv, "xoxb-test")
	t.Setenv(llmAPIKeyEnv, "sk-test")
	t.Setenv(llmModelEnv, "env-model")

	cfg := Load(path)

	if cfg.Slack.Channel != "#pulse-feed" || cfg.Slack.LookbackDays != 7 {
		t.Fatalf("unexpected slack config: %+v", cfg.Slack)
	}
	if cfg.Slack.BotToken != "xoxb-test" {
		t.Fatalf("expected env token, got %q", cfg.Slack.BotToken)
	}
	if cfg.LLM.Model != "env-model" {
		t.Fatalf("expected env override for model, got %q", cfg.LLM.Model)
	}
	if cfg.LLM.RequestDelay != 250*time.Millisecond {
		t.Fatalf("unexpected request delay %v", cfg.LLM.RequestDelay)
	}
	if cfg.LLM.DefaultRetryAfter != 60*time.Second {
		t.Fatalf("expected default retry-after to survive merge, got %v", cfg.LLM.DefaultRetryAfter)
	}
	if cfg.Fetch.Timeout != 5*time.Second || len(cfg.Fetch.SkipDomains) != 1 {
		t.Fatalf("unexpected fetch config: %+v", cfg.Fetch)
	}
	if cfg.Storage.ProcessedDriver != ProcessedDriverSQLite {
		t.Fatalf("expected normalized driver, got %q", cfg.Storage.ProcessedDriver)
	}
	if got := cfg.Storage.ItemsPath(); got != filepath.Join("/srv/pulse", "items") {
		t.Fatalf("unexpected items path %s", got)
	}
	if cfg.Scheduler.Location().String() != "Europe/Berlin" {
		t.Fatalf("unexpected location %s", cfg.Scheduler.Location())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if err := cfg.ValidateSchedule(); err != nil {
		t.Fatalf("expected valid schedule, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	if cfg.Slack.Lookback() != 30*24*time.Hour {
		t.Fatalf("unexpected lookback %v", cfg.Slack.Lookback())
	}
	if cfg.Fetch.Timeout != 15*time.Second {
		t.Fatalf("unexpected fetch timeout %v", cfg.Fetch.Timeout)
	}
	if len(cfg.Fetch.SkipDomains) != len(domain.DefaultSkipDomains) {
		t.Fatalf("expected default skip domains, got %v", cfg.Fetch.SkipDomains)
	}
	if cfg.Storage.ProcessedDriver != ProcessedDriverFile {
		t.Fatalf("unexpected driver %q", cfg.Storage.ProcessedDriver)
	}
}

func TestValidateReportsAllMissing(t *testing.T) {
	cfg := defaultConfig()

	err := cfg.Validate()
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if len(cfgErr.Missing) != 3 {
		t.Fatalf("expected three missing settings, got %v", cfgErr.Missing)
	}
}

func TestValidateScheduleRejectsGarbage(t *testing.T) {
	cfg := defaultConfig()
	cfg.Scheduler.CronExpression = "every tuesday"

	if err := cfg.ValidateSchedule(); err == nil {
		t.Fatal("expected invalid cron expression error")
	}
}

func TestLoadKeepsExplicitZeroTemperature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  temperature: 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if got := Load(path).LLM.Temperature; got != 0 {
		t.Fatalf("expected explicit zero temperature, got %v", got)
	}
	if got := Load(filepath.Join(t.TempDir(), "missing.yaml")).LLM.Temperature; got != 0.7 {
		t.Fatalf("expected default temperature, got %v", got)
	}
}

func TestValidateRejectsBadTuning(t *testing.T) {
	valid := defaultConfig()
	valid.Slack.BotToken = "xoxb"
	valid.Slack.Channel = "C1"
	valid.LLM.APIKey = "sk"
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero look-back", func(c *Config) { c.Slack.LookbackDays = 0 }},
		{"negative look-back", func(c *Config) { c.Slack.LookbackDays = -3 }},
		{"negative temperature", func(c *Config) { c.LLM.Temperature = -0.1 }},
		{"unknown driver", func(c *Config) { c.Storage.ProcessedDriver = "mongo" }},
	}
	for _, tt := range tests {
		cfg := valid
		tt.mutate(&cfg)
		if cfg.Validate() == nil {
			t.Fatalf("%s: expected validation error", tt.name)
		}
	}
}

func TestNegativeLookbackFromEnvFailsValidation(t *testing.T) {
	t.Setenv(slackTokenEnv, "xoxb-test")
	t.Setenv(slackChannelEnv, "C1")
	t.Setenv(llmAPIKeyEnv, "sk-test")
	t.Setenv(lookbackDaysEnv, "-5")

	cfg := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.Slack.LookbackDays != -5 {
		t.Fatalf("expected env look-back, got %d", cfg.Slack.LookbackDays)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected negative look-back to be rejected")
	}
}
