// Package config loads and validates the application configuration
// from layered sources: defaults, file, environment, and flags.
package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	// Application
	App AppConfig `yaml:"app" json:"app" mapstructure:"app"`

	// Result cache
	Cache CacheConfig `yaml:"cache" json:"cache" mapstructure:"cache"`

	// Rate limits and budget
	Quota QuotaConfig `yaml:"quota" json:"quota" mapstructure:"quota"`

	// Outbound HTTP behavior
	Client ClientConfig `yaml:"client" json:"client" mapstructure:"client"`

	// AI provider endpoint
	Provider ProviderConfig `yaml:"provider" json:"provider" mapstructure:"provider"`

	// Optional weather context
	Environment EnvironmentConfig `yaml:"environment" json:"environment" mapstructure:"environment"`

	// On-disk counter persistence
	Persistence PersistenceConfig `yaml:"persistence" json:"persistence" mapstructure:"persistence"`

	// Terminal UI
	UI UIConfig `yaml:"ui" json:"ui" mapstructure:"ui"`
}

// AppConfig contains general application settings
type AppConfig struct {
	Name     string `yaml:"name" json:"name" mapstructure:"name"`
	Version  string `yaml:"version" json:"version" mapstructure:"version"`
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	LogFile  string `yaml:"log_file" json:"log_file" mapstructure:"log_file"`
	Timezone string `yaml:"timezone" json:"timezone" mapstructure:"timezone"`
}

// CacheConfig contains result cache settings
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries" json:"max_entries" mapstructure:"max_entries"`
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl" mapstructure:"default_ttl"`
	Policy     string        `yaml:"policy" json:"policy" mapstructure:"policy"`
	KeyPrefix  string        `yaml:"key_prefix" json:"key_prefix" mapstructure:"key_prefix"`
}

// CategoryCaps holds the per-window request caps for one category.
// Zero means unlimited for that window.
type CategoryCaps struct {
	Hourly  int64 `yaml:"hourly" json:"hourly" mapstructure:"hourly"`
	Daily   int64 `yaml:"daily" json:"daily" mapstructure:"daily"`
	Weekly  int64 `yaml:"weekly" json:"weekly" mapstructure:"weekly"`
	Monthly int64 `yaml:"monthly" json:"monthly" mapstructure:"monthly"`
}

// QuotaConfig contains rate limit and budget settings
type QuotaConfig struct {
	Categories     map[string]CategoryCaps `yaml:"categories" json:"categories" mapstructure:"categories"`
	MonthlyBudget  float64                 `yaml:"monthly_budget" json:"monthly_budget" mapstructure:"monthly_budget"`
	RecordCapacity int                     `yaml:"record_capacity" json:"record_capacity" mapstructure:"record_capacity"`
}

// ClientConfig contains resilient HTTP client settings
type ClientConfig struct {
	Timeout       time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	MaxAttempts   int           `yaml:"max_attempts" json:"max_attempts" mapstructure:"max_attempts"`
	BaseBackoff   time.Duration `yaml:"base_backoff" json:"base_backoff" mapstructure:"base_backoff"`
	RatePerSecond float64       `yaml:"rate_per_second" json:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int           `yaml:"burst" json:"burst" mapstructure:"burst"`
}

// ProviderConfig contains AI provider settings
type ProviderConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" json:"api_key" mapstructure:"api_key"`
	Offline bool   `yaml:"offline" json:"offline" mapstructure:"offline"`
}

// EnvironmentConfig contains optional weather context settings
type EnvironmentConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	URL     string        `yaml:"url" json:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
}

// PersistenceConfig contains counter store settings. When disabled,
// counters live in memory and reset on restart.
type PersistenceConfig struct {
	Enabled    bool          `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Path       string        `yaml:"path" json:"path" mapstructure:"path"`
	GCInterval time.Duration `yaml:"gc_interval" json:"gc_interval" mapstructure:"gc_interval"`
}

// UIConfig contains terminal UI settings
type UIConfig struct {
	Theme       string        `yaml:"theme" json:"theme" mapstructure:"theme"`
	RefreshRate time.Duration `yaml:"refresh_rate" json:"refresh_rate" mapstructure:"refresh_rate"`
	CompactMode bool          `yaml:"compact_mode" json:"compact_mode" mapstructure:"compact_mode"`
	NoColor     bool          `yaml:"no_color" json:"no_color" mapstructure:"no_color"`
}

// Format represents configuration file format
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
	FormatTOML
)

// ConfigPaths returns the default configuration file paths in order of precedence
func ConfigPaths() []string {
	return []string{
		"./vitalsum.yaml",
		"$HOME/.config/vitalsum/config.yaml",
		"$HOME/.vitalsum/config.yaml",
		"/etc/vitalsum/config.yaml",
	}
}

// Version will be set at build time
var Version = "dev"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:     "vitalsum",
			Version:  Version,
			LogLevel: "info",
			LogFile:  "",
			Timezone: "Local",
		},
		Cache: CacheConfig{
			MaxEntries: 64,
			DefaultTTL: time.Hour,
			Policy:     "lru",
			KeyPrefix:  "vitalsum",
		},
		Quota: QuotaConfig{
			Categories: map[string]CategoryCaps{
				"quick":         {Hourly: 10, Daily: 40, Weekly: 150, Monthly: 400},
				"daily":         {Hourly: 4, Daily: 12, Weekly: 50, Monthly: 150},
				"comprehensive": {Hourly: 2, Daily: 6, Weekly: 20, Monthly: 60},
			},
			MonthlyBudget:  5.0,
			RecordCapacity: 512,
		},
		Client: ClientConfig{
			Timeout:     10 * time.Second,
			MaxAttempts: 3,
			BaseBackoff: 500 * time.Millisecond,
		},
		Provider: ProviderConfig{
			BaseURL: "https://api.vitalsum.dev",
		},
		Environment: EnvironmentConfig{
			Enabled: false,
			Timeout: 2 * time.Second,
		},
		Persistence: PersistenceConfig{
			Enabled:    false,
			Path:       "$HOME/.vitalsum/quota",
			GCInterval: 5 * time.Minute,
		},
		UI: UIConfig{
			Theme:       "dark",
			RefreshRate: time.Second,
		},
	}
}

// OfflineConfig returns a configuration that never touches the network
func OfflineConfig() *Config {
	cfg := DefaultConfig()
	cfg.Provider.Offline = true
	cfg.Environment.Enabled = false
	return cfg
}

// DevelopmentConfig returns a configuration optimized for development
func DevelopmentConfig() *Config {
	cfg := DefaultConfig()
	cfg.App.LogLevel = "debug"
	cfg.UI.RefreshRate = 500 * time.Millisecond
	return cfg
}
