package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const maxWorkers = 64

// Validate checks every value. CLI flags may change a loaded config, so the
// CLI validates again after applying them.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validateMigration(); err != nil {
		return err
	}

	if err := c.validatePaths(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validateLogging() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("ASSETMIG_LOG_LEVEL is not a valid level: %q", c.LogLevel)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("ASSETMIG_LOG_FORMAT must be 'text' or 'json', got %q", c.LogFormat)
	}

	return nil
}

func (c *Config) validateMigration() error {
	if strings.TrimSpace(c.Dependency) == "" {
		return fmt.Errorf("ASSETMIG_DEPENDENCY must not be empty")
	}

	if c.Workers < 1 || c.Workers > maxWorkers {
		return fmt.Errorf("ASSETMIG_WORKERS must be between 1 and %d, got %d", maxWorkers, c.Workers)
	}

	return nil
}

func (c *Config) validatePaths() error {
	if c.CatalogPath != "" && !hasExt(c.CatalogPath, ".yaml", ".yml") {
		return fmt.Errorf("ASSETMIG_CATALOG must be a .yaml or .yml file, got %q", c.CatalogPath)
	}

	if c.MetricsFile != "" && !hasExt(c.MetricsFile, ".prom") {
		return fmt.Errorf("ASSETMIG_METRICS_FILE must end in .prom, got %q", c.MetricsFile)
	}

	if c.JournalPath != "" && c.JournalPath == c.CatalogPath {
		return fmt.Errorf("ASSETMIG_JOURNAL must differ from ASSETMIG_CATALOG")
	}

	return nil
}

func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
