// Package config provides environment-driven configuration for assetmig.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all application configuration values.
type Config struct {
	LogLevel    string
	LogFormat   string
	Dependency  string
	Workers     int
	CatalogPath string
	JournalPath string
	MetricsFile string
	DryRun      bool
}

// Load reads configuration from environment variables with sensible
// defaults. Variables from a .env file in the working directory are loaded
// first; variables already set in the environment take precedence.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:    strings.ToLower(envOrDefault("ASSETMIG_LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(envOrDefault("ASSETMIG_LOG_FORMAT", "text")),
		Dependency:  envOrDefault("ASSETMIG_DEPENDENCY", "core"),
		CatalogPath: envOrDefault("ASSETMIG_CATALOG", ""),
		JournalPath: envOrDefault("ASSETMIG_JOURNAL", ""),
		MetricsFile: envOrDefault("ASSETMIG_METRICS_FILE", ""),
		DryRun:      envOrDefault("ASSETMIG_DRY_RUN", "false") == "true",
	}

	workers, err := strconv.Atoi(envOrDefault("ASSETMIG_WORKERS", "4"))
	if err != nil {
		return nil, fmt.Errorf("ASSETMIG_WORKERS must be an integer: %w", err)
	}
	cfg.Workers = workers

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// NewLogger returns a logger configured with the level and format of c.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}

	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
