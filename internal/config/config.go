// Package config reads the application configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"trackify/internal/core"
	logpkg "trackify/internal/log"
)

type Config struct {
	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// AMQP, reminder delivery. Empty URL logs reminders instead.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Statistics cache. Empty Redis URL keeps the cache in process.
	RedisURL           string
	StatsCacheSize     int
	StatsCacheTTL      time.Duration
	StatsHistoryMonths int
	StatsUpcomingDays  int

	// Workers
	PaymentProcessorInterval  time.Duration
	ReminderProcessorInterval time.Duration
	GeneratorConcurrency      int
	DedupWindowDays           int

	// Reminders
	NotificationsEnabled bool
	ReminderOffsets      []int
	NotificationCadence  string
	ReminderWeekday      string
}

func Load() *Config {
	defaults := core.DefaultReminderSettings()

	cfg := &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/trackify.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "trackify"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "reminders"),

		RedisURL:           getEnv("REDIS_URL", ""),
		StatsCacheSize:     getEnvInt("STATS_CACHE_SIZE", 64),
		StatsCacheTTL:      getEnvDuration("STATS_CACHE_TTL", 15*time.Minute),
		StatsHistoryMonths: getEnvInt("STATS_HISTORY_MONTHS", 6),
		StatsUpcomingDays:  getEnvInt("STATS_UPCOMING_DAYS", 30),

		PaymentProcessorInterval:  getEnvDuration("PAYMENT_PROCESSOR_INTERVAL", time.Hour),
		ReminderProcessorInterval: getEnvDuration("REMINDER_PROCESSOR_INTERVAL", 24*time.Hour),
		GeneratorConcurrency:      getEnvInt("GENERATOR_CONCURRENCY", 4),
		DedupWindowDays:           getEnvInt("DEDUP_WINDOW_DAYS", 1),

		NotificationsEnabled: getEnvBool("NOTIFICATIONS_ENABLED", defaults.Enabled),
		ReminderOffsets:      getEnvIntList("REMINDER_OFFSETS", defaults.Offsets),
		NotificationCadence:  getEnv("NOTIFICATION_CADENCE", string(defaults.Cadence)),
		ReminderWeekday:      getEnv("REMINDER_WEEKDAY", defaults.WeeklyAnchor.String()),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if _, err := logpkg.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RedisURL != "" {
		if parsedURL, err := url.Parse(c.RedisURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': %v", c.RedisURL, err))
		} else if parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss" {
			errors = append(errors, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", parsedURL.Scheme))
		}
	}

	// Validate statistics configuration
	if c.StatsCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid stats cache size %d: must be at least 1", c.StatsCacheSize))
	}
	if c.StatsCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid stats cache TTL %v: must be at least 1 second", c.StatsCacheTTL))
	}
	if c.StatsHistoryMonths < 1 || c.StatsHistoryMonths > 120 {
		errors = append(errors, fmt.Sprintf("invalid stats history months %d: must be between 1 and 120", c.StatsHistoryMonths))
	}
	if c.StatsUpcomingDays < 0 {
		errors = append(errors, fmt.Sprintf("invalid stats upcoming days %d: must not be negative", c.StatsUpcomingDays))
	}

	// Validate worker configuration
	for name, interval := range map[string]time.Duration{
		"payment processor":  c.PaymentProcessorInterval,
		"reminder processor": c.ReminderProcessorInterval,
	} {
		if interval < time.Second {
			errors = append(errors, fmt.Sprintf("invalid %s interval %v: must be at least 1 second", name, interval))
		} else if interval > 7*24*time.Hour {
			errors = append(errors, fmt.Sprintf("invalid %s interval %v: must be at most 7 days", name, interval))
		}
	}
	if c.GeneratorConcurrency < 1 || c.GeneratorConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid generator concurrency %d: must be between 1 and 64", c.GeneratorConcurrency))
	}
	if c.DedupWindowDays < 0 || c.DedupWindowDays > 14 {
		errors = append(errors, fmt.Sprintf("invalid dedup window %d: must be between 0 and 14 days", c.DedupWindowDays))
	}

	// Validate reminder configuration
	if _, err := c.reminderSettings(); err != nil {
		errors = append(errors, err.Error())
	}

	// Return combined errors
	if len(errors) > 0 {
		slices.Sort(errors)
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ReminderSettings implements ports.ReminderSettingsProvider. Invalid values
// fall back to the defaults; Validate reports them.
func (c *Config) ReminderSettings() core.ReminderSettings {
	settings, err := c.reminderSettings()
	if err != nil {
		return core.DefaultReminderSettings()
	}
	return settings
}

func (c *Config) reminderSettings() (core.ReminderSettings, error) {
	cadence, err := core.ParseCadence(c.NotificationCadence)
	if err != nil {
		return core.ReminderSettings{}, err
	}
	weekday, err := core.ParseWeekday(c.ReminderWeekday)
	if err != nil {
		return core.ReminderSettings{}, err
	}
	settings := core.ReminderSettings{
		Enabled:      c.NotificationsEnabled,
		Offsets:      slices.Clone(c.ReminderOffsets),
		Cadence:      cadence,
		WeeklyAnchor: weekday,
	}
	if err := settings.Validate(); err != nil {
		return core.ReminderSettings{}, err
	}
	return settings, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvIntList parses a comma separated list such as "0,1,7". A malformed
// entry makes the whole list fall back to the default.
func getEnvIntList(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return slices.Clone(defaultValue)
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i, err := strconv.Atoi(part)
		if err != nil {
			return slices.Clone(defaultValue)
		}
		out = append(out, i)
	}
	return out
}
