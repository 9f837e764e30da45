// Package config holds the questd engine configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/questkeeper/internal/store"
)

// Config holds engine-wide configuration settings.
type Config struct {
	Quests   QuestsConfig   `yaml:"quests"`
	Autosave AutosaveConfig `yaml:"autosave"`
	Store    store.Config   `yaml:"store"`
	Feed     FeedConfig     `yaml:"feed"`
	Rollover RolloverConfig `yaml:"rollover"`
}

// QuestsConfig holds quest catalog and session settings.
type QuestsConfig struct {
	// Path is a quest YAML file or a directory of them.
	Path string `yaml:"path"`

	// MaxActive caps concurrently active quests. 0 uses the engine default.
	MaxActive int `yaml:"max_active"`

	// SaveSlot is the store key the session is saved under.
	SaveSlot string `yaml:"save_slot"`
}

// AutosaveConfig holds periodic save settings.
type AutosaveConfig struct {
	// IntervalSeconds between autosaves. 0 disables autosave.
	IntervalSeconds int `yaml:"interval_seconds"`

	// QueueSize bounds the number of distinct pending save slots.
	QueueSize int `yaml:"queue_size"`

	// WriteTimeoutSeconds bounds a single background write.
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
}

// Interval returns the autosave interval as a duration.
func (c AutosaveConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// WriteTimeout returns the per-write timeout as a duration.
func (c AutosaveConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// FeedConfig holds WebSocket event feed settings.
type FeedConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`

	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins (not recommended for production).
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum inbound WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`

	// SendBuffer is the per-client outbound queue length. Clients that fall
	// this far behind are disconnected.
	SendBuffer int `yaml:"send_buffer"`
}

// RolloverConfig drives daily and weekly quest resets off the game clock.
type RolloverConfig struct {
	// RealMinutesPerGameDay is how long a game day lasts. 0 disables rollover.
	RealMinutesPerGameDay int `yaml:"real_minutes_per_day"`

	// WeeklyEveryDays resets weekly quests every this many game days.
	WeeklyEveryDays int `yaml:"weekly_every_days"`
}

// DefaultConfig returns a Config with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		Quests: QuestsConfig{
			Path:      "data/quests",
			MaxActive: 20,
			SaveSlot:  "default",
		},
		Autosave: AutosaveConfig{
			IntervalSeconds:     60,
			QueueSize:           16,
			WriteTimeoutSeconds: 10,
		},
		Store: store.DefaultConfig("data/questkeeper.db"),
		Feed: FeedConfig{
			Enabled:        false,
			Addr:           ":8088",
			AllowedOrigins: []string{}, // Same-origin only by default
			MaxMessageSize: 4096,
			SendBuffer:     64,
		},
		Rollover: RolloverConfig{
			RealMinutesPerGameDay: 24,
			WeeklyEveryDays:       7,
		},
	}
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, returns default config.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Use defaults if file doesn't exist
		}
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), err
	}

	return config, nil
}

// ApplyEnv overrides settings from QK_* environment variables. Unparsable
// numeric values are reported and leave the setting unchanged.
func (c *Config) ApplyEnv() error {
	var errs []string
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q", name, v))
				return
			}
			*dst = n
		}
	}

	str("QK_QUESTS_PATH", &c.Quests.Path)
	str("QK_SAVE_SLOT", &c.Quests.SaveSlot)
	num("QK_MAX_ACTIVE", &c.Quests.MaxActive)
	num("QK_AUTOSAVE_SECONDS", &c.Autosave.IntervalSeconds)

	str("QK_STORE_DRIVER", &c.Store.Driver)
	str("QK_SQLITE_PATH", &c.Store.SQLitePath)
	str("QK_POSTGRES_HOST", &c.Store.Postgres.Host)
	num("QK_POSTGRES_PORT", &c.Store.Postgres.Port)
	str("QK_POSTGRES_USER", &c.Store.Postgres.User)
	str("QK_POSTGRES_PASSWORD", &c.Store.Postgres.Password)
	str("QK_POSTGRES_DATABASE", &c.Store.Postgres.Database)
	str("QK_POSTGRES_SSLMODE", &c.Store.Postgres.SSLMode)
	str("QK_REDIS_ADDR", &c.Store.Redis.Addr)
	str("QK_REDIS_PASSWORD", &c.Store.Redis.Password)
	num("QK_REDIS_DB", &c.Store.Redis.DB)

	str("QK_FEED_ADDR", &c.Feed.Addr)
	if v := os.Getenv("QK_FEED_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("QK_FEED_ENABLED=%q", v))
		} else {
			c.Feed.Enabled = enabled
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment overrides: %s", strings.Join(errs, ", "))
	}
	return nil
}

// Validate reports settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case store.DriverMemory, store.DriverSQLite, store.DriverPostgres, store.DriverRedis:
	default:
		return fmt.Errorf("store.driver %q is not one of memory, sqlite, postgres, redis", c.Store.Driver)
	}
	if c.Quests.Path == "" {
		return fmt.Errorf("quests.path is required")
	}
	if c.Quests.SaveSlot == "" {
		return fmt.Errorf("quests.save_slot is required")
	}
	if c.Quests.MaxActive < 0 {
		return fmt.Errorf("quests.max_active must not be negative")
	}
	if c.Autosave.IntervalSeconds < 0 {
		return fmt.Errorf("autosave.interval_seconds must not be negative")
	}
	if c.Rollover.RealMinutesPerGameDay > 0 && c.Rollover.WeeklyEveryDays <= 0 {
		return fmt.Errorf("rollover.weekly_every_days must be positive")
	}
	return nil
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *FeedConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host (same-origin policy).
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // No origin header means same-origin (e.g., non-browser client)
	}

	// Extract host from origin URL (e.g., "http://localhost:3000" -> "localhost:3000")
	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
