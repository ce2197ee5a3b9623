package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Name != "yahoo" || cfg.Provider.BatchSize != 20 || cfg.Cache.TTLSeconds != 3600 {
		t.Errorf("unexpected defaults: %+v", cfg.Provider)
	}
	if cfg.Display.Threshold != 3 || cfg.Server.Addr != ":8501" {
		t.Errorf("unexpected defaults: %+v %+v", cfg.Display, cfg.Server)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
provider:
  name: finmind
  batch_size: 10
cache:
  ttl_seconds: 600
display:
  threshold: 5
`)
	t.Setenv("FINMIND_TOKEN", "tok")
	t.Setenv("CACHE_TTL_SECONDS", "120")
	t.Setenv("HEATMAP_ADDR", ":9000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Name != "finmind" || cfg.Provider.BatchSize != 10 || cfg.Provider.Token != "tok" {
		t.Errorf("unexpected provider config: %+v", cfg.Provider)
	}
	if cfg.Cache.TTLSeconds != 120 {
		t.Errorf("env should override file TTL, got %d", cfg.Cache.TTLSeconds)
	}
	if cfg.Display.Threshold != 5 || cfg.Server.Addr != ":9000" {
		t.Errorf("unexpected values: %v %s", cfg.Display.Threshold, cfg.Server.Addr)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(writeConfig(t, "provider: [")); err == nil {
		t.Error("expected parse error")
	}
	t.Setenv("CACHE_TTL_SECONDS", "soon")
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil || !strings.Contains(err.Error(), "CACHE_TTL_SECONDS") {
		t.Errorf("expected env parse error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown provider", func(c *Config) { c.Provider.Name = "bloomberg" }, "provider.name"},
		{"frame without url", func(c *Config) { c.Provider.Name = "frame" }, "base_url"},
		{"negative batch", func(c *Config) { c.Provider.BatchSize = -1 }, "batch_size"},
		{"short lookback", func(c *Config) { c.Provider.LookbackDays = 1 }, "lookback_days"},
		{"negative threshold", func(c *Config) { c.Display.Threshold = -2 }, "threshold"},
		{"token without chat", func(c *Config) { c.Telegram.BotToken = "x" }, "telegram"},
		{"bad timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, "timezone"},
	}
	for _, tt := range tests {
		cfg := &Config{}
		cfg.applyDefaults()
		tt.mutate(cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: expected error mentioning %q, got %v", tt.name, tt.want, err)
		}
	}
}

func TestTelegramEnabled(t *testing.T) {
	cfg := &Config{}
	if cfg.TelegramEnabled() {
		t.Error("empty config should not enable telegram")
	}
	cfg.Telegram.BotToken, cfg.Telegram.ChatID = "t", "c"
	if !cfg.TelegramEnabled() {
		t.Error("expected telegram enabled")
	}
}

func TestLoad_BatchSizeDefaultsPerProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     int
	}{
		{"yahoo", 20},
		{"finmind", 10},
		{"mock", 50},
	}
	for _, tt := range tests {
		path := writeConfig(t, "provider:\n  name: "+tt.provider+"\n")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("%s: Load: %v", tt.provider, err)
		}
		if cfg.Provider.BatchSize != tt.want {
			t.Errorf("%s: expected batch size %d, got %d", tt.provider, tt.want, cfg.Provider.BatchSize)
		}
	}
}
