// Package config provides configuration loading and validation for the ApplyTrak binaries.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the service configuration. It may come from a JSON file; environment variables
// override file values and defaults fill whatever is still empty.
type Config struct {
	Env  string `json:"env,omitempty"`  // development or production
	Port int    `json:"port,omitempty"` // HTTP port for serve

	// Storage
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	RedisURL    string `json:"redis_url,omitempty"`    // optional flag store

	// Hosted backend
	SupabaseURL     string `json:"supabase_url,omitempty"`
	SupabaseAnonKey string `json:"supabase_anon_key,omitempty"`
	FunctionsURL    string `json:"functions_url,omitempty"` // base URL of the email handlers

	// Email
	EmailAPIURL    string `json:"email_api_url,omitempty"`
	EmailAPIKey    string `json:"email_api_key,omitempty"` // empty logs emails instead of sending
	EmailFrom      string `json:"email_from,omitempty"`
	AppURL         string `json:"app_url,omitempty"`
	PreferencesURL string `json:"preferences_url,omitempty"`

	// Digests
	WeeklyDigestCron  string `json:"weekly_digest_cron,omitempty"`
	MonthlyDigestCron string `json:"monthly_digest_cron,omitempty"`
	DigestTimezone    string `json:"digest_timezone,omitempty"`
	DigestConcurrency int    `json:"digest_concurrency,omitempty"`

	// Client core
	CloudSync bool `json:"cloud_sync,omitempty"`
}

// Defaults returns the values used when neither file nor environment sets a field.
func Defaults() Config {
	return Config{
		Env:               "development",
		Port:              8080,
		EmailAPIURL:       "https://api.resend.com/emails",
		EmailFrom:         "ApplyTrak <notifications@applytrak.app>",
		AppURL:            "https://applytrak.app",
		WeeklyDigestCron:  "0 9 * * 1",
		MonthlyDigestCron: "0 9 1 * *",
		DigestTimezone:    "UTC",
		DigestConcurrency: 5,
	}
}

// LoadConfig loads configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Load reads the optional file at path, overlays the environment, fills defaults and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.Getenv)
	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, err := strconv.Atoi(getenv(key)); err == nil {
			*dst = v
		}
	}

	str("APP_ENV", &c.Env)
	num("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("SUPABASE_URL", &c.SupabaseURL)
	str("SUPABASE_ANON_KEY", &c.SupabaseAnonKey)
	str("FUNCTIONS_URL", &c.FunctionsURL)
	str("EMAIL_API_URL", &c.EmailAPIURL)
	str("RESEND_API_KEY", &c.EmailAPIKey)
	str("EMAIL_API_KEY", &c.EmailAPIKey)
	str("EMAIL_FROM", &c.EmailFrom)
	str("APP_URL", &c.AppURL)
	str("PREFERENCES_URL", &c.PreferencesURL)
	str("WEEKLY_DIGEST_CRON", &c.WeeklyDigestCron)
	str("MONTHLY_DIGEST_CRON", &c.MonthlyDigestCron)
	str("DIGEST_TIMEZONE", &c.DigestTimezone)
	num("DIGEST_CONCURRENCY", &c.DigestConcurrency)
	if v, err := strconv.ParseBool(getenv("CLOUD_SYNC")); err == nil {
		c.CloudSync = v
	}
}

// Validate checks that the configuration has valid values. Required fields are checked by
// the commands that need them.
func (c *Config) Validate() error {
	if c.Env != "" && c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("config error: 'env' must be development or production, got %q", c.Env)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.DigestConcurrency < 0 {
		return fmt.Errorf("config error: 'digest_concurrency' must be non-negative")
	}

	for name, raw := range map[string]string{
		"supabase_url":    c.SupabaseURL,
		"functions_url":   c.FunctionsURL,
		"email_api_url":   c.EmailAPIURL,
		"app_url":         c.AppURL,
		"preferences_url": c.PreferencesURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config error: '%s' is not an absolute URL: %s", name, raw)
		}
	}

	for name, spec := range map[string]string{
		"weekly_digest_cron":  c.WeeklyDigestCron,
		"monthly_digest_cron": c.MonthlyDigestCron,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("config error: '%s' is not a valid cron spec: %v", name, err)
		}
	}

	if c.DigestTimezone != "" {
		if _, err := time.LoadLocation(c.DigestTimezone); err != nil {
			return fmt.Errorf("config error: unknown 'digest_timezone' %q", c.DigestTimezone)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	strs := []struct{ dst, def *string }{
		{&result.Env, &defaults.Env},
		{&result.DatabaseURL, &defaults.DatabaseURL},
		{&result.RedisURL, &defaults.RedisURL},
		{&result.SupabaseURL, &defaults.SupabaseURL},
		{&result.SupabaseAnonKey, &defaults.SupabaseAnonKey},
		{&result.FunctionsURL, &defaults.FunctionsURL},
		{&result.EmailAPIURL, &defaults.EmailAPIURL},
		{&result.EmailAPIKey, &defaults.EmailAPIKey},
		{&result.EmailFrom, &defaults.EmailFrom},
		{&result.AppURL, &defaults.AppURL},
		{&result.PreferencesURL, &defaults.PreferencesURL},
		{&result.WeeklyDigestCron, &defaults.WeeklyDigestCron},
		{&result.MonthlyDigestCron, &defaults.MonthlyDigestCron},
		{&result.DigestTimezone, &defaults.DigestTimezone},
	}
	for _, s := range strs {
		if *s.dst == "" {
			*s.dst = *s.def
		}
	}

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.DigestConcurrency == 0 {
		result.DigestConcurrency = defaults.DigestConcurrency
	}

	// Preference links point at the handler served next to the other functions.
	if result.PreferencesURL == "" && result.FunctionsURL != "" {
		result.PreferencesURL = result.FunctionsURL + "/email-preferences"
	}

	// Bool fields cannot distinguish unset from false and are not merged.

	return result
}

// Location returns the digest time zone, UTC when unset.
func (c *Config) Location() *time.Location {
	if c.DigestTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.DigestTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
