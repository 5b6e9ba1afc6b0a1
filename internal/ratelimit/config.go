package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by LoadConfig
const (
	EnvEnabled       = "PUBLISH_RATE_LIMIT_ENABLED"
	EnvDefaultLimit  = "PUBLISH_RATE_LIMIT_DEFAULT_LIMIT"
	EnvDefaultWindow = "PUBLISH_RATE_LIMIT_DEFAULT_WINDOW"
	EnvUnlimited     = "PUBLISH_RATE_LIMIT_UNLIMITED" // comma-separated platforms
)

// PlatformConfig is the delivery budget of one platform.
type PlatformConfig struct {
	Platform string
	Limit    int           // deliveries per window
	Window   time.Duration // refill window
	Burst    int           // defaults to Limit if 0
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled       bool
	DefaultLimit  int
	DefaultWindow time.Duration
	Unlimited     map[string]bool
	Platforms     []PlatformConfig
}

// For returns the budget of platform, falling back to the defaults.
func (c *Config) For(platform string) PlatformConfig {
	if c.Unlimited[platform] {
		return PlatformConfig{Platform: platform}
	}
	for _, pc := range c.Platforms {
		if pc.Platform == platform {
			return pc
		}
	}
	return PlatformConfig{Platform: platform, Limit: c.DefaultLimit, Window: c.DefaultWindow, Burst: c.DefaultLimit}
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() *Config {
	return loadConfig(os.Getenv)
}

func loadConfig(getenv func(string) string) *Config {
	if !getEnvBool(getenv, EnvEnabled, true) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:       true,
		DefaultLimit:  getEnvInt(getenv, EnvDefaultLimit, 100),
		DefaultWindow: getEnvDuration(getenv, EnvDefaultWindow, time.Hour),
		Unlimited:     parseList(getenv(EnvUnlimited)),
		Platforms:     DefaultPlatformConfigs(),
	}
}

// DefaultPlatformConfigs returns per-platform delivery budgets.
func DefaultPlatformConfigs() []PlatformConfig {
	return []PlatformConfig{
		{Platform: "twitter", Limit: 50, Window: 15 * time.Minute, Burst: 10},
		{Platform: "linkedin", Limit: 25, Window: time.Hour, Burst: 5},
		{Platform: "facebook", Limit: 25, Window: time.Hour, Burst: 5},
		{Platform: "instagram", Limit: 25, Window: time.Hour, Burst: 5},
		{Platform: "email", Limit: 10, Window: time.Hour, Burst: 2},
		{Platform: "newsletter", Limit: 10, Window: time.Hour, Burst: 2},
	}
}

func getEnvInt(getenv func(string) string, key string, defaultValue int) int {
	if value := getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(getenv func(string) string, key string, defaultValue bool) bool {
	if value := getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(getenv func(string) string, key string, defaultValue time.Duration) time.Duration {
	if value := getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func parseList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result[item] = true
		}
	}
	return result
}
