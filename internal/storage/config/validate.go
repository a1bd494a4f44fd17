package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	// DataDir
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}

	// Export
	if err := c.Export.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("export: %w", err))
	}

	// Query
	if err := c.Query.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("query: %w", err))
	}

	// Stats
	if err := c.Stats.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("stats: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the export configuration.
func (c *ExportConfig) Validate() error {
	var errs []error

	validFormats := map[string]bool{
		"json":    true,
		"parquet": true,
		"":        true, // Empty defaults to json
	}
	if !validFormats[c.Format] {
		errs = append(errs, errors.New("format must be one of: json, parquet"))
	}

	validCompression := map[string]bool{
		"snappy": true,
		"zstd":   true,
		"none":   true,
		"":       true, // Empty defaults to zstd
	}
	if !validCompression[c.Compression] {
		errs = append(errs, errors.New("compression must be one of: snappy, zstd, none"))
	}

	if c.Compression == "zstd" && (c.CompressionLevel < 0 || c.CompressionLevel > 22) {
		errs = append(errs, errors.New("compression_level for zstd must be between 0 and 22"))
	}

	if c.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the query configuration.
func (c *QueryConfig) Validate() error {
	var errs []error

	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}

	if c.MaxRows <= 0 {
		errs = append(errs, errors.New("max_rows must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the stats configuration.
func (c *StatsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Accuracy <= 0 || c.Accuracy > 1 {
		return errors.New("accuracy must be between 0 and 1")
	}
	return nil
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.StoreDir(),
		c.ExportDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// StoreDir returns the key-value store directory path.
func (c *Config) StoreDir() string {
	if c.Store.Dir != "" {
		return c.Store.Dir
	}
	return filepath.Join(c.DataDir, "store")
}

// ExportDir returns the flat export directory path.
func (c *Config) ExportDir() string {
	return filepath.Join(c.DataDir, "export")
}
