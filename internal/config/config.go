package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the simulation daemon settings.
type Config struct {
	Port        string
	DBPath      string
	CatalogPath string // empty means use the built-in catalog

	AdminUser   string
	AdminPass   string
	AuthEnabled bool

	// ShoutrrrURLs is a comma-separated list of notification destinations.
	ShoutrrrURLs []string

	// TickInterval is the real-time spacing between pulses; TickMillisols is
	// how much Mars time each pulse advances.
	TickInterval  time.Duration
	TickMillisols float64

	// SnapshotEverySols controls how often wear condition snapshots are
	// persisted for trend estimation.
	SnapshotEverySols int
}

// Load returns the daemon configuration from environment variables.
func Load() Config {
	return Config{
		Port:              getEnv("PORT", "9280"),
		DBPath:            getEnv("DB_PATH", "marssim.db"),
		CatalogPath:       getEnv("CATALOG_PATH", ""),
		AdminUser:         getEnv("ADMIN_USER", "admin"),
		AdminPass:         getEnv("ADMIN_PASS", ""),
		AuthEnabled:       getEnv("AUTH_ENABLED", "true") == "true",
		ShoutrrrURLs:      splitList(getEnv("SHOUTRRR_URLS", "")),
		TickInterval:      getDuration("TICK_INTERVAL", time.Second),
		TickMillisols:     getFloat("TICK_MILLISOLS", 5),
		SnapshotEverySols: getInt("SNAPSHOT_EVERY_SOLS", 1),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
