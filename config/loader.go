package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Source represents a configuration source
type Source interface {
	Name() string
	Load() (*Config, error)
	Priority() int
}

// Validator validates configuration
type Validator interface {
	Validate(cfg *Config) error
}

// Merger merges configurations from multiple sources
type Merger interface {
	Merge(base, override *Config) *Config
}

// Loader loads configuration from multiple sources
type Loader struct {
	sources    []Source
	validators []Validator
	merger     Merger
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		sources:    make([]Source, 0),
		validators: make([]Validator, 0),
		merger:     &DefaultMerger{},
	}
}

// AddSource adds a configuration source
func (l *Loader) AddSource(source Source) {
	l.sources = append(l.sources, source)
}

// AddValidator adds a configuration validator
func (l *Loader) AddValidator(validator Validator) {
	l.validators = append(l.validators, validator)
}

// LoadWithDefaults loads configuration with defaults as base. Sources
// are applied in priority order; a failing source is skipped.
func (l *Loader) LoadWithDefaults() (*Config, error) {
	sort.Slice(l.sources, func(i, j int) bool {
		return l.sources[i].Priority() < l.sources[j].Priority()
	})

	config := DefaultConfig()
	for _, source := range l.sources {
		cfg, err := source.Load()
		if err != nil {
			continue
		}
		config = l.merger.Merge(config, cfg)
	}

	for _, validator := range l.validators {
		if err := validator.Validate(config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return config, nil
}

// FileSource loads configuration from a file
type FileSource struct {
	path   string
	format Format
}

// NewFileSource creates a new file configuration source
func NewFileSource(path string) *FileSource {
	format := FormatYAML
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".toml":
		format = FormatTOML
	}

	return &FileSource{
		path:   path,
		format: format,
	}
}

// Name returns the source name
func (f *FileSource) Name() string {
	return fmt.Sprintf("file:%s", f.path)
}

// Priority returns the source priority (lower = higher priority)
func (f *FileSource) Priority() int {
	return 100
}

// Load loads configuration from the file
func (f *FileSource) Load() (*Config, error) {
	expandedPath := os.ExpandEnv(f.path)

	if _, err := os.Stat(expandedPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", expandedPath)
	}

	v := viper.New()
	v.SetConfigFile(expandedPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", expandedPath, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from %s: %w", expandedPath, err)
	}

	return &config, nil
}

// EnvSource loads configuration from environment variables
type EnvSource struct {
	prefix string
}

// NewEnvSource creates a new environment variable configuration source
func NewEnvSource(prefix string) *EnvSource {
	return &EnvSource{
		prefix: prefix,
	}
}

// Name returns the source name
func (e *EnvSource) Name() string {
	return fmt.Sprintf("env:%s", e.prefix)
}

// Priority returns the source priority (lower = higher priority)
func (e *EnvSource) Priority() int {
	return 200
}

// Load loads configuration from environment variables
func (e *EnvSource) Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(e.prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// Keys must be registered before AutomaticEnv can see them.
	e.setAllKeys(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from environment: %w", err)
	}

	return &config, nil
}

// setAllKeys sets all possible configuration keys for environment variable reading
func (e *EnvSource) setAllKeys(v *viper.Viper) {
	v.SetDefault("app.name", "")
	v.SetDefault("app.version", "")
	v.SetDefault("app.log_level", "")
	v.SetDefault("app.log_file", "")
	v.SetDefault("app.timezone", "")

	v.SetDefault("cache.max_entries", 0)
	v.SetDefault("cache.default_ttl", "")
	v.SetDefault("cache.policy", "")
	v.SetDefault("cache.key_prefix", "")

	v.SetDefault("quota.monthly_budget", 0.0)
	v.SetDefault("quota.record_capacity", 0)

	v.SetDefault("client.timeout", "")
	v.SetDefault("client.max_attempts", 0)
	v.SetDefault("client.base_backoff", "")
	v.SetDefault("client.rate_per_second", 0.0)
	v.SetDefault("client.burst", 0)

	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.offline", false)

	v.SetDefault("environment.enabled", false)
	v.SetDefault("environment.url", "")
	v.SetDefault("environment.timeout", "")

	v.SetDefault("persistence.enabled", false)
	v.SetDefault("persistence.path", "")
	v.SetDefault("persistence.gc_interval", "")

	v.SetDefault("ui.theme", "")
	v.SetDefault("ui.refresh_rate", "")
	v.SetDefault("ui.compact_mode", false)
	v.SetDefault("ui.no_color", false)
}

// FlagSource loads configuration from command-line flags
type FlagSource struct {
	flags *pflag.FlagSet
}

// NewFlagSource creates a new flag configuration source
func NewFlagSource(flags *pflag.FlagSet) *FlagSource {
	return &FlagSource{
		flags: flags,
	}
}

// Name returns the source name
func (f *FlagSource) Name() string {
	return "flags"
}

// Priority returns the source priority (lower = higher priority)
func (f *FlagSource) Priority() int {
	return 300
}

// Load loads configuration from command-line flags
func (f *FlagSource) Load() (*Config, error) {
	config := &Config{}

	f.flags.VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			return
		}

		switch flag.Name {
		case "log-level":
			if val, err := f.flags.GetString("log-level"); err == nil {
				config.App.LogLevel = val
			}
		case "api-key":
			if val, err := f.flags.GetString("api-key"); err == nil {
				config.Provider.APIKey = val
			}
		case "offline":
			if val, err := f.flags.GetBool("offline"); err == nil {
				config.Provider.Offline = val
			}
		case "no-color":
			if val, err := f.flags.GetBool("no-color"); err == nil {
				config.UI.NoColor = val
			}
		}
	})

	return config, nil
}

// DefaultMerger is the default configuration merger
type DefaultMerger struct{}

// Merge merges two configurations, with override taking precedence
func (m *DefaultMerger) Merge(base, override *Config) *Config {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	result := *base

	if override.App.Name != "" {
		result.App.Name = override.App.Name
	}
	if override.App.Version != "" {
		result.App.Version = override.App.Version
	}
	if override.App.LogLevel != "" {
		result.App.LogLevel = override.App.LogLevel
	}
	if override.App.LogFile != "" {
		result.App.LogFile = override.App.LogFile
	}
	if override.App.Timezone != "" {
		result.App.Timezone = override.App.Timezone
	}

	if override.Cache.MaxEntries > 0 {
		result.Cache.MaxEntries = override.Cache.MaxEntries
	}
	if override.Cache.DefaultTTL > 0 {
		result.Cache.DefaultTTL = override.Cache.DefaultTTL
	}
	if override.Cache.Policy != "" {
		result.Cache.Policy = override.Cache.Policy
	}
	if override.Cache.KeyPrefix != "" {
		result.Cache.KeyPrefix = override.Cache.KeyPrefix
	}

	if len(override.Quota.Categories) > 0 {
		result.Quota.Categories = override.Quota.Categories
	}
	if override.Quota.MonthlyBudget > 0 {
		result.Quota.MonthlyBudget = override.Quota.MonthlyBudget
	}
	if override.Quota.RecordCapacity > 0 {
		result.Quota.RecordCapacity = override.Quota.RecordCapacity
	}

	if override.Client.Timeout > 0 {
		result.Client.Timeout = override.Client.Timeout
	}
	if override.Client.MaxAttempts > 0 {
		result.Client.MaxAttempts = override.Client.MaxAttempts
	}
	if override.Client.BaseBackoff > 0 {
		result.Client.BaseBackoff = override.Client.BaseBackoff
	}
	if override.Client.RatePerSecond > 0 {
		result.Client.RatePerSecond = override.Client.RatePerSecond
	}
	if override.Client.Burst > 0 {
		result.Client.Burst = override.Client.Burst
	}

	if override.Provider.BaseURL != "" {
		result.Provider.BaseURL = override.Provider.BaseURL
	}
	if override.Provider.APIKey != "" {
		result.Provider.APIKey = override.Provider.APIKey
	}
	if override.Provider.Offline {
		result.Provider.Offline = true
	}

	if override.Environment.Enabled {
		result.Environment.Enabled = true
	}
	if override.Environment.URL != "" {
		result.Environment.URL = override.Environment.URL
	}
	if override.Environment.Timeout > 0 {
		result.Environment.Timeout = override.Environment.Timeout
	}

	if override.Persistence.Enabled {
		result.Persistence.Enabled = true
	}
	if override.Persistence.Path != "" {
		result.Persistence.Path = override.Persistence.Path
	}
	if override.Persistence.GCInterval > 0 {
		result.Persistence.GCInterval = override.Persistence.GCInterval
	}

	if override.UI.Theme != "" {
		result.UI.Theme = override.UI.Theme
	}
	if override.UI.RefreshRate > 0 {
		result.UI.RefreshRate = override.UI.RefreshRate
	}
	if override.UI.CompactMode {
		result.UI.CompactMode = true
	}
	if override.UI.NoColor {
		result.UI.NoColor = true
	}

	return &result
}
