// Package config loads runtime settings from the environment, with
// optional .env overrides for local development.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the program.
type Config struct {
	// Database
	DBPath string

	// Importer
	ImportDir string

	// Reporting
	HomeCity string

	// Logging
	LogLevel string
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables win over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DBPath:    getEnv("IMPACTSTATS_DB_PATH", "./data/impactstats.db"),
		ImportDir: getEnv("IMPACTSTATS_IMPORT_DIR", "./import"),
		HomeCity:  getEnv("IMPACTSTATS_HOME_CITY", "Creil"),
		LogLevel:  getEnv("IMPACTSTATS_LOG_LEVEL", "info"),
	}
}

// Validate checks the configuration and returns an error describing
// every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.DBPath == "" {
		errs = append(errs, "database path cannot be empty")
	} else if dir := filepath.Dir(c.DBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errs = append(errs, fmt.Sprintf(
					"cannot create database directory %q: %v", dir, err))
			}
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf(
			"invalid log level %q: must be debug, info, warn or error",
			c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s",
			strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
