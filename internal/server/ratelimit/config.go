package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() *Config {
	enabled := getEnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{
			Enabled: false,
		}
	}

	defaultLimit := getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 300)
	defaultWindow := getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute)
	cleanupInterval := getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute)

	whitelist := parseIPList(getEnvString("RATE_LIMIT_WHITELIST", ""))
	blacklist := parseIPList(getEnvString("RATE_LIMIT_BLACKLIST", ""))

	return &Config{
		Enabled:         enabled,
		DefaultLimit:    defaultLimit,
		DefaultWindow:   defaultWindow,
		CleanupInterval: cleanupInterval,
		Whitelist:       whitelist,
		Blacklist:       blacklist,
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the per-endpoint limits. Each send costs an email API call,
// so the email handlers are far stricter than the default.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Broadcasts
		{Path: "/achievements-announcement", Method: "POST", Limit: 5, Window: time.Hour, Burst: 1},

		// Single-recipient emails
		{Path: "/welcome-email", Method: "POST", Limit: 20, Window: time.Minute, Burst: 5},
		{Path: "/milestone-email", Method: "POST", Limit: 20, Window: time.Minute, Burst: 5},
		{Path: "/interview-scheduled-email", Method: "POST", Limit: 20, Window: time.Minute, Burst: 5},
		{Path: "/weekly-goals-email", Method: "POST", Limit: 10, Window: time.Minute, Burst: 2},
		{Path: "/monthly-analytics-email", Method: "POST", Limit: 10, Window: time.Minute, Burst: 2},

		// Preference pages and admin checks
		{Path: "/email-preferences", Method: "GET", Limit: 60, Window: time.Minute, Burst: 10},
		{Path: "/email-preferences", Method: "POST", Limit: 30, Window: time.Minute, Burst: 5},
		{Path: "/admin/", Method: "GET", Limit: 60, Window: time.Minute, Burst: 10},

		// Health and metrics are unlimited, see MatchEndpoint.
	}
}

func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnv parses key with parse, falling back to defaultValue when unset or malformed.
func getEnv[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	if value := os.Getenv(key); value != "" {
		if parsed, err := parse(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	return getEnv(key, defaultValue, strconv.Atoi)
}

func getEnvBool(key string, defaultValue bool) bool {
	return getEnv(key, defaultValue, strconv.ParseBool)
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return getEnv(key, defaultValue, time.ParseDuration)
}

// parseIPList parses a comma-separated list of client IPs into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
