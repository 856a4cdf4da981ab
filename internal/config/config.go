// Package config loads server configuration from the environment, with an
// optional .env file for development.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds everything cmd/arena-server needs to come up.
type Config struct {
	// Addr is the HTTP/WebSocket listen address.
	Addr string
	// RedisURL selects the shared store. Empty runs the in-process store,
	// which disables multi-process replication.
	RedisURL string
	// DatabaseURL enables the Postgres match-history archive when set.
	DatabaseURL string
	// PingInterval is the connection liveness sweep period.
	PingInterval time.Duration
	// LogLevel is a logrus level name.
	LogLevel string
}

// Load reads the .env file if present, then the environment. Unset values
// fall back to defaults suitable for local development.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("could not read .env file")
	}

	cfg := Config{
		Addr:         getenv("ARENA_ADDR", ":8080"),
		RedisURL:     os.Getenv("REDIS_URL"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		PingInterval: 30 * time.Second,
		LogLevel:     getenv("LOG_LEVEL", "info"),
	}
	if raw := os.Getenv("PING_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.PingInterval = d
		} else {
			logrus.WithField("value", raw).Warn("ignoring invalid PING_INTERVAL")
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
