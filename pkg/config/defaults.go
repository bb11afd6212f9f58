// Package config provides centralized configuration for the behavior core.
package config

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

var envLoaded sync.Once

// loadEnvFile copies KEY=VALUE pairs from path into the process environment.
// Variables already present in the environment win.
func loadEnvFile(path string) {
	envLoaded.Do(func() {
		file, err := os.Open(path)
		if err != nil {
			return
		}
		defer file.Close()

		log.Printf("Loading configuration overrides from %s file...", path)
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

			if _, exists := os.LookupEnv(key); !exists {
				os.Setenv(key, value)
			}
		}
	})
}

// Config holds every tunable of the behavior core.
type Config struct {
	// Server Configuration
	Port               string        `env:"PORT" envDefault:"8080"`
	ServerReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	ServerWriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	ServerIdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	AllowedOrigins     []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:4321,http://127.0.0.1:3000,http://127.0.0.1:4321"`

	// Durable storage area
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"sqlite3"`
	StoragePath   string `env:"STORAGE_PATH" envDefault:"data/behavior.db"`

	// Tiered cache
	CacheDefaultExpiry   time.Duration `env:"CACHE_DEFAULT_EXPIRY" envDefault:"60m"`
	CacheCleanupInterval time.Duration `env:"CACHE_CLEANUP_INTERVAL" envDefault:"5m"`
	CacheCleanupVerbose  bool          `env:"CACHE_CLEANUP_VERBOSE" envDefault:"false"`

	// Behavior tracking
	DwellFlushInterval time.Duration `env:"DWELL_FLUSH_INTERVAL" envDefault:"30s"`
	SearchHistoryLimit int           `env:"SEARCH_HISTORY_LIMIT" envDefault:"50"`
	EventLogLimit      int           `env:"EVENT_LOG_LIMIT" envDefault:"100"`
	AnalyticsTopN      int           `env:"ANALYTICS_TOP_N" envDefault:"10"`

	// Cookies
	CookiePath        string `env:"COOKIE_PATH" envDefault:"/"`
	CookieDomain      string `env:"COOKIE_DOMAIN"`
	CookieSecure      bool   `env:"COOKIE_SECURE" envDefault:"false"`
	CookieSameSite    string `env:"COOKIE_SAMESITE" envDefault:"lax"`
	SessionCookieDays int    `env:"SESSION_COOKIE_DAYS" envDefault:"1"`

	// Logging
	LogDirectory string `env:"LOG_DIRECTORY" envDefault:"logs"`
	LogToFile    bool   `env:"LOG_TO_FILE" envDefault:"false"`
	LogJSON      bool   `env:"LOG_JSON" envDefault:"true"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit .env path.
func LoadFrom(envFile string) (*Config, error) {
	loadEnvFile(envFile)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the runtime cannot work with.
func (c *Config) Validate() error {
	if c.CacheCleanupInterval <= 0 {
		return fmt.Errorf("CACHE_CLEANUP_INTERVAL must be positive, got %s", c.CacheCleanupInterval)
	}
	if c.DwellFlushInterval <= 0 {
		return fmt.Errorf("DWELL_FLUSH_INTERVAL must be positive, got %s", c.DwellFlushInterval)
	}
	if c.SearchHistoryLimit <= 0 || c.EventLogLimit <= 0 || c.AnalyticsTopN <= 0 {
		return fmt.Errorf("history limits must be positive (search=%d, events=%d, topN=%d)",
			c.SearchHistoryLimit, c.EventLogLimit, c.AnalyticsTopN)
	}
	switch strings.ToLower(c.CookieSameSite) {
	case "", "strict", "lax", "none":
	default:
		return fmt.Errorf("COOKIE_SAMESITE must be strict, lax or none, got %q", c.CookieSameSite)
	}
	switch c.StorageDriver {
	case "sqlite3", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}
