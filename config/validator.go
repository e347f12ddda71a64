package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/penlight/vitalsum/cache"
	"github.com/penlight/vitalsum/models"
)

// StandardValidator provides standard configuration validation
type StandardValidator struct{}

// NewStandardValidator creates a new standard validator
func NewStandardValidator() *StandardValidator {
	return &StandardValidator{}
}

// Validate validates the entire configuration
func (v *StandardValidator) Validate(cfg *Config) error {
	var errors []string

	if err := v.validateApp(&cfg.App); err != nil {
		errors = append(errors, fmt.Sprintf("app: %v", err))
	}
	if err := v.validateCache(&cfg.Cache); err != nil {
		errors = append(errors, fmt.Sprintf("cache: %v", err))
	}
	if err := v.validateQuota(&cfg.Quota); err != nil {
		errors = append(errors, fmt.Sprintf("quota: %v", err))
	}
	if err := v.validateClient(&cfg.Client); err != nil {
		errors = append(errors, fmt.Sprintf("client: %v", err))
	}
	if err := v.validateProvider(&cfg.Provider); err != nil {
		errors = append(errors, fmt.Sprintf("provider: %v", err))
	}
	if err := v.validateUI(&cfg.UI); err != nil {
		errors = append(errors, fmt.Sprintf("ui: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (v *StandardValidator) validateApp(app *AppConfig) error {
	var errors []string

	switch strings.ToLower(app.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("log_level: unknown level: %s", app.LogLevel))
	}

	if app.LogFile != "" {
		dir := filepath.Dir(app.LogFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("log_file: directory does not exist: %s", dir))
			}
		}
	}

	if app.Timezone != "" && app.Timezone != "Local" {
		if _, err := time.LoadLocation(app.Timezone); err != nil {
			errors = append(errors, fmt.Sprintf("timezone: invalid timezone: %s", app.Timezone))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

func (v *StandardValidator) validateCache(c *CacheConfig) error {
	var errors []string

	if c.MaxEntries < 0 {
		errors = append(errors, "max_entries: must not be negative")
	}
	if c.DefaultTTL < 0 {
		errors = append(errors, "default_ttl: must not be negative")
	}
	if c.Policy != "" && !cache.EvictionPolicy(c.Policy).Valid() {
		errors = append(errors, fmt.Sprintf("policy: unknown eviction policy: %s", c.Policy))
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

func (v *StandardValidator) validateQuota(q *QuotaConfig) error {
	var errors []string

	if q.MonthlyBudget < 0 {
		errors = append(errors, "monthly_budget: must not be negative")
	}
	if q.RecordCapacity < 0 {
		errors = append(errors, "record_capacity: must not be negative")
	}
	for name, caps := range q.Categories {
		if !models.RequestCategory(name).Valid() {
			errors = append(errors, fmt.Sprintf("categories: unknown category: %s", name))
		}
		if caps.Hourly < 0 || caps.Daily < 0 || caps.Weekly < 0 || caps.Monthly < 0 {
			errors = append(errors, fmt.Sprintf("categories.%s: caps must not be negative", name))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

func (v *StandardValidator) validateClient(c *ClientConfig) error {
	var errors []string

	if c.Timeout < 0 {
		errors = append(errors, "timeout: must not be negative")
	}
	if c.MaxAttempts < 0 {
		errors = append(errors, "max_attempts: must not be negative")
	}
	if c.RatePerSecond < 0 {
		errors = append(errors, "rate_per_second: must not be negative")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

func (v *StandardValidator) validateProvider(p *ProviderConfig) error {
	if p.Offline {
		return nil
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base_url: required unless offline")
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url: not a valid URL: %s", p.BaseURL)
	}
	return nil
}

func (v *StandardValidator) validateUI(u *UIConfig) error {
	var errors []string

	switch u.Theme {
	case "", "dark", "light":
	default:
		errors = append(errors, fmt.Sprintf("theme: unknown theme: %s", u.Theme))
	}
	if u.RefreshRate < 0 {
		errors = append(errors, "refresh_rate: must not be negative")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}
