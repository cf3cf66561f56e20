// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	token := cfg.Paperless.Token
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Paperless PaperlessConfig `yaml:"paperless"`
	Sync      SyncConfig      `yaml:"sync"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PaperlessConfig holds connection settings for the paperless-ngx archive
type PaperlessConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	// ProjectTag is the tag name whose documents are treated as project invoices
	ProjectTag string `yaml:"project_tag"`
}

// SyncConfig holds reconciliation settings
type SyncConfig struct {
	LookbackDays    int    `yaml:"lookback_days"`
	PageSize        int    `yaml:"page_size"`
	DefaultCurrency string `yaml:"default_currency"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// SchedulerConfig holds background sync scheduling settings
type SchedulerConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
	RunOnStartup    bool `yaml:"run_on_startup"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${PAPERLESS_TOKEN})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Paperless: PaperlessConfig{
			BaseURL:    os.Getenv("PAPERLESS_BASE_URL"),
			Token:      os.Getenv("PAPERLESS_TOKEN"),
			ProjectTag: getEnv("PROJECT_TAG_NAME", ""),
		},
		Sync: SyncConfig{
			LookbackDays:    getEnvInt("SYNC_LOOKBACK_DAYS", 365),
			PageSize:        getEnvInt("SYNC_PAGE_SIZE", 100),
			DefaultCurrency: getEnv("DEFAULT_CURRENCY", "EUR"),
		},
		Storage: StorageConfig{
			DatabasePath: getEnv("DB_PATH", "papercost.db"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getEnvBool("SCHEDULER_ENABLED", false),
			IntervalMinutes: getEnvInt("SCHEDULER_INTERVAL_MINUTES", 360),
			RunOnStartup:    getEnvBool("SCHEDULER_RUN_ON_STARTUP", true),
		},
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8080),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from the specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// applyDefaults fills zero values with defaults shared by both load paths
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Paperless.ProjectTag) == "" {
		c.Paperless.ProjectTag = "Pool"
	}
	if c.Sync.LookbackDays <= 0 {
		c.Sync.LookbackDays = 365
	}
	if c.Sync.PageSize <= 0 {
		c.Sync.PageSize = 100
	}
	c.Sync.DefaultCurrency = strings.ToUpper(strings.TrimSpace(c.Sync.DefaultCurrency))
	if c.Sync.DefaultCurrency == "" {
		c.Sync.DefaultCurrency = "EUR"
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "papercost.db"
	}
	if c.Scheduler.IntervalMinutes <= 0 {
		c.Scheduler.IntervalMinutes = 360
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// ValidatePaperless checks that the settings required to reach the document
// archive are present. Called before a sync is allowed to run.
func (c *Config) ValidatePaperless() error {
	if strings.TrimSpace(c.Paperless.BaseURL) == "" {
		return fmt.Errorf("PAPERLESS_BASE_URL is not set")
	}
	if strings.TrimSpace(c.Paperless.Token) == "" {
		return fmt.Errorf("PAPERLESS_TOKEN is not set")
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvBool retrieves a boolean environment variable with a fallback default
func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}
