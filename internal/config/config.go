package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Providers lists the accepted values of provider.name.
var Providers = []string{"yahoo", "finmind", "frame", "mock"}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr             string `yaml:"addr"`
		RootLabel        string `yaml:"root_label"`
		MaxAutoRetries   int    `yaml:"max_auto_retries"`
		AutoRetrySeconds int    `yaml:"auto_retry_seconds"`
		ShutdownSeconds  int    `yaml:"shutdown_seconds"`
	} `yaml:"server"`
	Provider struct {
		Name             string  `yaml:"name"`
		BaseURL          string  `yaml:"base_url"`
		Token            string  `yaml:"token"`
		Suffix           string  `yaml:"suffix"`
		BatchSize        int     `yaml:"batch_size"`
		LookbackDays     int     `yaml:"lookback_days"`
		TimeoutSeconds   int     `yaml:"timeout_seconds"`
		Retries          int     `yaml:"retries"`
		Workers          int     `yaml:"workers"`
		BatchesPerMinute float64 `yaml:"batches_per_minute"`
	} `yaml:"provider"`
	Cache struct {
		TTLSeconds        int `yaml:"ttl_seconds"`
		FailureTTLSeconds int `yaml:"failure_ttl_seconds"`
	} `yaml:"cache"`
	Display struct {
		Threshold float64 `yaml:"threshold"`
	} `yaml:"display"`
	Reference struct {
		OverridesPath string `yaml:"overrides_path"`
	} `yaml:"reference"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
		Timezone    string `yaml:"timezone"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	envString("HEATMAP_ADDR", &cfg.Server.Addr)
	envString("HEATMAP_PROVIDER", &cfg.Provider.Name)
	envString("PROVIDER_BASE_URL", &cfg.Provider.BaseURL)
	envString("FRAME_BASE_URL", &cfg.Provider.BaseURL)
	envString("FINMIND_TOKEN", &cfg.Provider.Token)
	envString("TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)
	envString("TELEGRAM_CHAT_ID", &cfg.Telegram.ChatID)
	envString("HTTPS_PROXY", &cfg.Proxy)
	envString("SQLITE_PATH", &cfg.Database.SQLitePath)
	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_FILE", &cfg.Log.File)
	envString("REFRESH_CRON", &cfg.Schedule.RefreshCron)
	envString("OVERRIDES_PATH", &cfg.Reference.OverridesPath)
	if err := envInt("CACHE_TTL_SECONDS", &cfg.Cache.TTLSeconds); err != nil {
		return nil, err
	}
	if err := envInt("BATCH_SIZE", &cfg.Provider.BatchSize); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8501"
	}
	if c.Server.RootLabel == "" {
		c.Server.RootLabel = "台灣 50 市場結構"
	}
	if c.Server.MaxAutoRetries == 0 {
		c.Server.MaxAutoRetries = 3
	}
	if c.Server.AutoRetrySeconds == 0 {
		c.Server.AutoRetrySeconds = 10
	}
	if c.Server.ShutdownSeconds == 0 {
		c.Server.ShutdownSeconds = 10
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "yahoo"
	}
	if c.Provider.Suffix == "" {
		c.Provider.Suffix = ".TW"
	}
	if c.Provider.BatchSize == 0 {
		c.Provider.BatchSize = DefaultBatchSize(c.Provider.Name)
	}
	if c.Provider.LookbackDays == 0 {
		c.Provider.LookbackDays = 7
	}
	if c.Provider.TimeoutSeconds == 0 {
		c.Provider.TimeoutSeconds = 20
	}
	if c.Provider.Workers == 0 {
		c.Provider.Workers = 1
	}
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = 3600
	}
	if c.Cache.FailureTTLSeconds == 0 {
		c.Cache.FailureTTLSeconds = 60
	}
	if c.Display.Threshold == 0 {
		c.Display.Threshold = 3
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Asia/Taipei"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// DefaultBatchSize returns the batch size used for provider when none is
// configured. FinMind fetches one stock per call, so its batches stay small
// enough to finish inside the batch timeout.
func DefaultBatchSize(provider string) int {
	switch provider {
	case "yahoo":
		return 20
	case "finmind":
		return 10
	default:
		return 50
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	known := false
	for _, p := range Providers {
		if c.Provider.Name == p {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("provider.name %q is not one of %v", c.Provider.Name, Providers)
	}
	if c.Provider.Name == "frame" && c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required for the frame provider")
	}
	if c.Provider.BatchSize <= 0 {
		return fmt.Errorf("provider.batch_size must be positive")
	}
	if c.Provider.LookbackDays < 2 {
		return fmt.Errorf("provider.lookback_days must be at least 2")
	}
	if c.Provider.Retries < 0 {
		return fmt.Errorf("provider.retries must not be negative")
	}
	if c.Provider.BatchesPerMinute < 0 {
		return fmt.Errorf("provider.batches_per_minute must not be negative")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive")
	}
	if c.Cache.FailureTTLSeconds <= 0 {
		return fmt.Errorf("cache.failure_ttl_seconds must be positive")
	}
	if c.Display.Threshold <= 0 {
		return fmt.Errorf("display.threshold must be positive")
	}
	if c.Server.MaxAutoRetries < 0 {
		return fmt.Errorf("server.max_auto_retries must not be negative")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	return nil
}

// Location returns the market time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}

// TelegramEnabled reports whether operator notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
