package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.VK.AppID != 5776857 {
		t.Errorf("expected app id 5776857, got %d", cfg.VK.AppID)
	}
	if cfg.VK.UserAgent != "com.vk.windows_app/20302" {
		t.Errorf("unexpected user agent %q", cfg.VK.UserAgent)
	}
	if cfg.VK.CatalogLimit != 6000 {
		t.Errorf("expected catalog limit 6000, got %d", cfg.VK.CatalogLimit)
	}
	if cfg.Download.RetryAttempts != 3 {
		t.Errorf("expected 3 retry attempts, got %d", cfg.Download.RetryAttempts)
	}
	if cfg.Download.RetryDelay != 2*time.Second {
		t.Errorf("expected 2s retry delay, got %v", cfg.Download.RetryDelay)
	}
	if cfg.Output.CacheFile != ".authorization" {
		t.Errorf("unexpected cache file %q", cfg.Output.CacheFile)
	}
	if cfg.Download.WriteMetadata {
		t.Error("metadata sidecars must be off by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VKMUSIC_USER_AGENT", "custom/1.0")
	t.Setenv("VKMUSIC_CATALOG_LIMIT", "100")
	t.Setenv("VKMUSIC_DIRECTORY", "/music")
	t.Setenv("VKMUSIC_CACHE_FILE", "/tmp/.auth")
	t.Setenv("VKMUSIC_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.VK.UserAgent != "custom/1.0" {
		t.Errorf("user agent not overridden: %q", cfg.VK.UserAgent)
	}
	if cfg.VK.CatalogLimit != 100 {
		t.Errorf("catalog limit not overridden: %d", cfg.VK.CatalogLimit)
	}
	if cfg.Output.Directory != "/music" {
		t.Errorf("directory not overridden: %q", cfg.Output.Directory)
	}
	if cfg.Output.CacheFile != "/tmp/.auth" {
		t.Errorf("cache file not overridden: %q", cfg.Output.CacheFile)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level not overridden: %q", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
vk:
  app_id: 12345
  catalog_limit: 500
download:
  retry_attempts: 5
  retry_delay: 1s
output:
  directory: "/from/file"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.VK.AppID != 12345 {
		t.Errorf("app id not loaded: %d", cfg.VK.AppID)
	}
	if cfg.Download.RetryAttempts != 5 {
		t.Errorf("retry attempts not loaded: %d", cfg.Download.RetryAttempts)
	}
	if cfg.Download.RetryDelay != time.Second {
		t.Errorf("retry delay not loaded: %v", cfg.Download.RetryDelay)
	}
	// Untouched sections keep their defaults
	if cfg.VK.UserAgent != "com.vk.windows_app/20302" {
		t.Errorf("user agent lost its default: %q", cfg.VK.UserAgent)
	}
}

func TestFlagsBeatEnvironment(t *testing.T) {
	t.Setenv("VKMUSIC_DIRECTORY", "/from/env")

	cfg, err := Load("", map[string]interface{}{
		"directory":      "/from/flag",
		"retry-attempts": 7,
		"metadata":       true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Output.Directory != "/from/flag" {
		t.Errorf("expected flag to win, got %q", cfg.Output.Directory)
	}
	if cfg.Download.RetryAttempts != 7 {
		t.Errorf("expected 7 attempts, got %d", cfg.Download.RetryAttempts)
	}
	if !cfg.Download.WriteMetadata {
		t.Error("expected metadata flag to stick")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero app id", func(c *Config) { c.VK.AppID = 0 }},
		{"empty api version", func(c *Config) { c.VK.APIVersion = "" }},
		{"empty user agent", func(c *Config) { c.VK.UserAgent = "" }},
		{"zero catalog limit", func(c *Config) { c.VK.CatalogLimit = 0 }},
		{"zero retry attempts", func(c *Config) { c.Download.RetryAttempts = 0 }},
		{"negative retry delay", func(c *Config) { c.Download.RetryDelay = -time.Second }},
		{"empty cache file", func(c *Config) { c.Output.CacheFile = "" }},
		{"bogus log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			test.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation to fail")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Directory = "/music"
	cfg.Download.RetryAttempts = 5

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Output.Directory != "/music" || loaded.Download.RetryAttempts != 5 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}
