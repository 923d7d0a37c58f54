package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iter8/iter8-cli/internal/changes"
)

// BackupRetentionConfig holds configuration for the backup store and its
// retention policy
type BackupRetentionConfig struct {
	// Dir is the backup directory, relative to the project root.
	// Default: .iter8_backups
	Dir string `yaml:"dir"`

	// Ceiling is the number of backup entries that triggers eviction.
	// Set to 0 to keep every backup.
	// Default: 100, Range: 0 or 10-10000
	Ceiling int `yaml:"ceiling"`

	// EvictPercent is the share of entries, oldest first, removed once the
	// ceiling is reached. At least one entry is always removed.
	// Default: 20, Range: 1-100
	EvictPercent int `yaml:"evict_percent"`
}

// DefaultBackupRetentionConfig returns the default backup retention configuration
func DefaultBackupRetentionConfig() BackupRetentionConfig {
	return BackupRetentionConfig{
		Dir:          changes.DefaultBackupDir,
		Ceiling:      changes.DefaultCeiling,
		EvictPercent: changes.DefaultEvictPercent,
	}
}

// Validate checks if the configuration has valid values
func (c BackupRetentionConfig) Validate() error {
	if strings.TrimSpace(c.Dir) == "" {
		return fmt.Errorf("backup dir cannot be empty")
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(c.Dir)))
	if clean == "." {
		return fmt.Errorf("backup dir cannot be the project root (got %q)", c.Dir)
	}
	for _, seg := range strings.Split(clean, "/") {
		if seg == ".." {
			return fmt.Errorf("backup dir cannot contain '..' (got %q)", c.Dir)
		}
	}

	// Validate Ceiling (0 = unlimited, or 10-10000)
	if c.Ceiling < 0 {
		return fmt.Errorf("ceiling cannot be negative (got %d)", c.Ceiling)
	}
	if c.Ceiling > 0 && c.Ceiling < 10 {
		return fmt.Errorf("ceiling must be 0 (unlimited) or >= 10 (got %d)", c.Ceiling)
	}
	if c.Ceiling > 10000 {
		return fmt.Errorf("ceiling too large (got %d, max 10000)", c.Ceiling)
	}

	if c.EvictPercent < 1 || c.EvictPercent > 100 {
		return fmt.Errorf("evict_percent must be between 1 and 100 (got %d)", c.EvictPercent)
	}

	return nil
}

// String returns a human-readable representation of the config
func (c BackupRetentionConfig) String() string {
	return fmt.Sprintf("BackupRetentionConfig{Dir: %s, Ceiling: %d, EvictPercent: %d}",
		c.Dir, c.Ceiling, c.EvictPercent)
}

// Policy converts the config into the store's retention policy.
func (c BackupRetentionConfig) Policy() changes.RetentionPolicy {
	return changes.RetentionPolicy{Ceiling: c.Ceiling, EvictPercent: c.EvictPercent}
}

// applyEnv overrides fields from the environment:
//   - ITER8_BACKUP_DIR: Backup directory relative to the project root
//   - ITER8_BACKUP_CEILING: Entry count that triggers eviction, 0 for unlimited
//   - ITER8_BACKUP_EVICT_PERCENT: Share of entries evicted per run
func (c *BackupRetentionConfig) applyEnv() error {
	if err := parseEnvString("ITER8_BACKUP_DIR", &c.Dir); err != nil {
		return err
	}
	if err := parseEnvInt("ITER8_BACKUP_CEILING", &c.Ceiling); err != nil {
		return err
	}
	return parseEnvInt("ITER8_BACKUP_EVICT_PERCENT", &c.EvictPercent)
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}
