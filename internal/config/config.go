package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"PulseIngest/internal/domain"
)

const (
	defaultTimezone = "UTC"

	configPathEnv     = "PULSE_CONFIG"
	slackTokenEnv     = "SLACK_BOT_TOKEN"
	slackChannelEnv   = "SLACK_CHANNEL"
	llmAPIKeyEnv      = "LLM_API_KEY"
	llmModelEnv       = "LLM_MODEL"
	llmEndpointEnv    = "LLM_ENDPOINT"
	dataDirEnv        = "PULSE_DATA_DIR"
	processedDSNEnv   = "PROCESSED_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
	lookbackDaysEnv   = "SLACK_LOOKBACK_DAYS"
)

// Processed-set backends.
const (
	ProcessedDriverFile     = "file"
	ProcessedDriverSQLite   = "sqlite"
	ProcessedDriverPostgres = "postgres"
)

// Config holds high-level settings required across the application.
type Config struct {
	Slack         SlackConfig        `yaml:"slack"`
	Fetch         FetchConfig        `yaml:"fetch"`
	LLM           LLMConfig          `yaml:"llm"`
	Storage       StorageConfig      `yaml:"storage"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// SlackConfig describes where candidate URLs are read from.
type SlackConfig struct {
	BotToken          string `yaml:"botToken"`
	Channel           string `yaml:"channel"`
	LookbackDays      int    `yaml:"lookbackDays"`
	RequestsPerMinute int    `yaml:"requestsPerMinute"`
	NotifyChannel     string `yaml:"notifyChannel"`
	APIURL            string `yaml:"apiUrl"`
}

// Lookback converts LookbackDays to a duration.
func (s SlackConfig) Lookback() time.Duration {
	return time.Duration(s.LookbackDays) * 24 * time.Hour
}

// FetchConfig controls article downloads.
type FetchConfig struct {
	UserAgent     string        `yaml:"userAgent"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxChars      int           `yaml:"maxChars"`
	RespectRobots bool          `yaml:"respectRobots"`
	SkipDomains   []string      `yaml:"skipDomains"`
}

// LLMConfig defines how to contact the OpenAI-compatible generation API.
type LLMConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"apiKey"`
	Temperature       float64       `yaml:"temperature"`
	MaxTokens         int           `yaml:"maxTokens"`
	RequestDelay      time.Duration `yaml:"requestDelay"`
	DefaultRetryAfter time.Duration `yaml:"defaultRetryAfter"`
	Timeout           time.Duration `yaml:"timeout"`
	Audience          string        `yaml:"audience"`
}

// StorageConfig locates persisted items, the manifest and the processed set.
type StorageConfig struct {
	DataDir         string `yaml:"dataDir"`
	ItemsDir        string `yaml:"itemsDir"`
	ManifestFile    string `yaml:"manifestFile"`
	ProcessedFile   string `yaml:"processedFile"`
	ProcessedDriver string `yaml:"processedDriver"`
	ProcessedDSN    string `yaml:"processedDsn"`
}

// ItemsPath resolves ItemsDir against DataDir.
func (s StorageConfig) ItemsPath() string { return s.resolve(s.ItemsDir) }

// ManifestPath resolves ManifestFile against DataDir.
func (s StorageConfig) ManifestPath() string { return s.resolve(s.ManifestFile) }

// ProcessedPath resolves ProcessedFile against DataDir.
func (s StorageConfig) ProcessedPath() string { return s.resolve(s.ProcessedFile) }

func (s StorageConfig) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.DataDir, p)
}

// SchedulerConfig defines when the pipeline should run in schedule mode.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates optional outbound summary channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// LoggingConfig selects slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads .env files and YAML configuration (if present) and applies environment overrides.
// An explicit path wins over PULSE_CONFIG.
func Load(path string) Config {
	loadDotEnv()

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
				cfg.applyExplicitZeros(raw)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func loadDotEnv() {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		// Load never overrides variables already present in the process environment.
		if err := godotenv.Load(file); err != nil {
			log.Printf("config: cannot load %s: %v", file, err)
		}
	}
}

// Validate checks that every credential needed for a pipeline run is present.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Slack.BotToken) == "" {
		missing = append(missing, slackTokenEnv)
	}
	if strings.TrimSpace(c.Slack.Channel) == "" {
		missing = append(missing, slackChannelEnv)
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		missing = append(missing, llmAPIKeyEnv)
	}
	if c.Storage.ProcessedDriver != ProcessedDriverFile && strings.TrimSpace(c.Storage.ProcessedDSN) == "" {
		missing = append(missing, processedDSNEnv)
	}
	if len(missing) > 0 {
		return &domain.ConfigError{Missing: missing}
	}

	switch c.Storage.ProcessedDriver {
	case ProcessedDriverFile, ProcessedDriverSQLite, ProcessedDriverPostgres:
	default:
		return fmt.Errorf("unknown processed driver %q", c.Storage.ProcessedDriver)
	}
	if c.Slack.LookbackDays <= 0 {
		return fmt.Errorf("slack look-back must be positive, got %d days", c.Slack.LookbackDays)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature %v outside [0, 2]", c.LLM.Temperature)
	}
	return nil
}

// ValidateSchedule checks the cron expression used by schedule mode.
func (c Config) ValidateSchedule() error {
	if strings.TrimSpace(c.Scheduler.CronExpression) == "" {
		return &domain.ConfigError{Missing: []string{"scheduler.cronExpression"}}
	}
	if _, err := cron.ParseStandard(c.Scheduler.CronExpression); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", c.Scheduler.CronExpression, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(slackTokenEnv); v != "" {
		c.Slack.BotToken = v
	}
	if v := os.Getenv(slackChannelEnv); v != "" {
		c.Slack.Channel = v
	}
	c.Slack.LookbackDays = envInt(lookbackDaysEnv, c.Slack.LookbackDays)

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(llmEndpointEnv); v != "" {
		c.LLM.Endpoint = v
	}

	if v := os.Getenv(dataDirEnv); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv(processedDSNEnv); v != "" {
		c.Storage.ProcessedDSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

// applyExplicitZeros honours fields where zero is a meaningful setting and
// mergeConfig cannot tell it apart from an absent key.
func (c *Config) applyExplicitZeros(raw []byte) {
	var present struct {
		LLM struct {
			Temperature *float64 `yaml:"temperature"`
		} `yaml:"llm"`
	}
	if err := yaml.Unmarshal(raw, &present); err != nil {
		return
	}
	if present.LLM.Temperature != nil {
		c.LLM.Temperature = *present.LLM.Temperature
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Slack.BotToken != "" {
		base.Slack.BotToken = override.Slack.BotToken
	}
	if override.Slack.Channel != "" {
		base.Slack.Channel = override.Slack.Channel
	}
	if override.Slack.LookbackDays > 0 {
		base.Slack.LookbackDays = override.Slack.LookbackDays
	}
	if override.Slack.RequestsPerMinute > 0 {
		base.Slack.RequestsPerMinute = override.Slack.RequestsPerMinute
	}
	if override.Slack.NotifyChannel != "" {
		base.Slack.NotifyChannel = override.Slack.NotifyChannel
	}
	if override.Slack.APIURL != "" {
		base.Slack.APIURL = override.Slack.APIURL
	}

	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}
	if override.Fetch.Timeout > 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}
	if override.Fetch.MaxChars > 0 {
		base.Fetch.MaxChars = override.Fetch.MaxChars
	}
	if override.Fetch.RespectRobots {
		base.Fetch.RespectRobots = true
	}
	if len(override.Fetch.SkipDomains) > 0 {
		base.Fetch.SkipDomains = override.Fetch.SkipDomains
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.Temperature > 0 {
		base.LLM.Temperature = override.LLM.Temperature
	}
	if override.LLM.MaxTokens > 0 {
		base.LLM.MaxTokens = override.LLM.MaxTokens
	}
	if override.LLM.RequestDelay > 0 {
		base.LLM.RequestDelay = override.LLM.RequestDelay
	}
	if override.LLM.DefaultRetryAfter > 0 {
		base.LLM.DefaultRetryAfter = override.LLM.DefaultRetryAfter
	}
	if override.LLM.Timeout > 0 {
		base.LLM.Timeout = override.LLM.Timeout
	}
	if override.LLM.Audience != "" {
		base.LLM.Audience = override.LLM.Audience
	}

	if override.Storage.DataDir != "" {
		base.Storage.DataDir = override.Storage.DataDir
	}
	if override.Storage.ItemsDir != "" {
		base.Storage.ItemsDir = override.Storage.ItemsDir
	}
	if override.Storage.ManifestFile != "" {
		base.Storage.ManifestFile = override.Storage.ManifestFile
	}
	if override.Storage.ProcessedFile != "" {
		base.Storage.ProcessedFile = override.Storage.ProcessedFile
	}
	if override.Storage.ProcessedDriver != "" {
		base.Storage.ProcessedDriver = strings.ToLower(override.Storage.ProcessedDriver)
	}
	if override.Storage.ProcessedDSN != "" {
		base.Storage.ProcessedDSN = override.Storage.ProcessedDSN
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Slack: SlackConfig{
			LookbackDays:      30,
			RequestsPerMinute: 50,
		},
		Fetch: FetchConfig{
			UserAgent:   "PulseIngest/1.0 (+content research bot)",
			Timeout:     15 * time.Second,
			MaxChars:    12000,
			SkipDomains: append([]string(nil), domain.DefaultSkipDomains...),
		},
		LLM: LLMConfig{
			Endpoint:          "https://api.openai.com/v1/chat/completions",
			Model:             "gpt-4o-mini",
			Temperature:       0.7,
			MaxTokens:         1024,
			RequestDelay:      4 * time.Second,
			DefaultRetryAfter: 60 * time.Second,
			Timeout:           60 * time.Second,
			Audience:          "B2B founders and go-to-market leaders",
		},
		Storage: StorageConfig{
			DataDir:         filepath.Join("data", "pulse"),
			ItemsDir:        "items",
			ManifestFile:    "manifest.json",
			ProcessedFile:   "processed-urls.txt",
			ProcessedDriver: ProcessedDriverFile,
		},
		Scheduler: SchedulerConfig{CronExpression: "0 */6 * * *", Timezone: defaultTimezone, location: tz},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

func envInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
