package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the VK music downloader
type Config struct {
	// VK API settings
	VK VKConfig `yaml:"vk" json:"vk"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Transcoder settings
	Transcode TranscodeConfig `yaml:"transcode" json:"transcode"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// VKConfig holds VK-specific configuration
type VKConfig struct {
	// AppID is the OAuth client id used for the direct token grant. The
	// official iOS application id skips the extra web validation step.
	AppID      int    `yaml:"app_id" json:"app_id"`
	APIVersion string `yaml:"api_version" json:"api_version"`
	UserAgent  string `yaml:"user_agent" json:"user_agent"`
	// CatalogLimit bounds the single paged audio.get call
	CatalogLimit int `yaml:"catalog_limit" json:"catalog_limit"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	RetryAttempts   int           `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay" json:"retry_delay"`
	DownloadTimeout time.Duration `yaml:"download_timeout" json:"download_timeout"`
	WriteMetadata   bool          `yaml:"write_metadata" json:"write_metadata"`
}

// OutputConfig holds output and credential cache locations
type OutputConfig struct {
	// Directory for downloaded tracks. Empty means derive one from the
	// authenticated account's public profile link.
	Directory string `yaml:"directory" json:"directory"`
	// CacheFile is the plaintext authorization cache
	CacheFile string `yaml:"cache_file" json:"cache_file"`
}

// TranscodeConfig holds external transcoder settings
type TranscodeConfig struct {
	// FFmpegPath overrides PATH lookup when set
	FFmpegPath string `yaml:"ffmpeg_path" json:"ffmpeg_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		VK: VKConfig{
			AppID:        5776857,
			APIVersion:   "5.131",
			UserAgent:    "com.vk.windows_app/20302",
			CatalogLimit: 6000,
		},
		Download: DownloadConfig{
			RetryAttempts:   3,
			RetryDelay:      2 * time.Second,
			DownloadTimeout: 60 * time.Second,
			WriteMetadata:   false,
		},
		Output: OutputConfig{
			Directory: "",
			CacheFile: ".authorization",
		},
		Transcode: TranscodeConfig{
			FFmpegPath: "",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if userAgent := os.Getenv("VKMUSIC_USER_AGENT"); userAgent != "" {
		c.VK.UserAgent = userAgent
	}
	if appID := os.Getenv("VKMUSIC_APP_ID"); appID != "" {
		var val int
		fmt.Sscanf(appID, "%d", &val)
		if val > 0 {
			c.VK.AppID = val
		}
	}
	if limit := os.Getenv("VKMUSIC_CATALOG_LIMIT"); limit != "" {
		var val int
		fmt.Sscanf(limit, "%d", &val)
		if val > 0 {
			c.VK.CatalogLimit = val
		}
	}
	if dir := os.Getenv("VKMUSIC_DIRECTORY"); dir != "" {
		c.Output.Directory = dir
	}
	if cache := os.Getenv("VKMUSIC_CACHE_FILE"); cache != "" {
		c.Output.CacheFile = cache
	}
	if ffmpeg := os.Getenv("VKMUSIC_FFMPEG_PATH"); ffmpeg != "" {
		c.Transcode.FFmpegPath = ffmpeg
	}
	if logLevel := os.Getenv("VKMUSIC_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".vkmusic.yaml",
		".vkmusic.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "vkmusic", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "vkmusic", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".vkmusic.yaml"),
		filepath.Join(os.Getenv("HOME"), ".vkmusic.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.VK.AppID <= 0 {
		errs = append(errs, errors.New("VK application id must be positive"))
	}
	if c.VK.APIVersion == "" {
		errs = append(errs, errors.New("VK API version is required"))
	}
	if c.VK.UserAgent == "" {
		errs = append(errs, errors.New("user agent is required"))
	}
	if c.VK.CatalogLimit <= 0 {
		errs = append(errs, errors.New("catalog limit must be positive"))
	}

	if c.Download.RetryAttempts <= 0 {
		errs = append(errs, errors.New("retry attempts must be positive"))
	}
	if c.Download.RetryDelay < 0 {
		errs = append(errs, errors.New("retry delay cannot be negative"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Output.CacheFile == "" {
		errs = append(errs, errors.New("authorization cache file path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dir, ok := flags["directory"].(string); ok && dir != "" {
		c.Output.Directory = dir
	}
	if cache, ok := flags["cache-file"].(string); ok && cache != "" {
		c.Output.CacheFile = cache
	}
	if ffmpeg, ok := flags["ffmpeg-path"].(string); ok && ffmpeg != "" {
		c.Transcode.FFmpegPath = ffmpeg
	}
	if attempts, ok := flags["retry-attempts"].(int); ok && attempts > 0 {
		c.Download.RetryAttempts = attempts
	}
	if metadata, ok := flags["metadata"].(bool); ok {
		c.Download.WriteMetadata = metadata
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".vkmusic.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
