package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete storage configuration.
type Config struct {
	// DataDir is the root directory for all storage files.
	DataDir string `yaml:"data_dir"`

	// Export configures the flat per-partition export.
	Export ExportConfig `yaml:"export"`

	// Store configures the key-value store.
	Store StoreConfig `yaml:"store"`

	// Query configures the query service.
	Query QueryConfig `yaml:"query"`

	// Stats configures corpus statistics collection.
	Stats StatsConfig `yaml:"stats"`
}

// ExportConfig configures the flat per-partition export.
type ExportConfig struct {
	// Format is the export format: json, parquet.
	Format string `yaml:"format"`

	// Compression is the Parquet compression algorithm: snappy, zstd, none.
	Compression string `yaml:"compression"`

	// CompressionLevel is the compression level (for zstd: 1-22).
	CompressionLevel int `yaml:"compression_level"`

	// GroupByPartition writes one file per partition instead of a
	// single flat file.
	GroupByPartition bool `yaml:"group_by_partition"`

	// Workers is the number of parallel partition export workers.
	Workers int `yaml:"workers"`
}

// StoreConfig configures the key-value store.
type StoreConfig struct {
	// Dir is the store directory. Defaults to {DataDir}/store.
	Dir string `yaml:"dir"`

	// SyncWrites fsyncs the log after every put.
	SyncWrites bool `yaml:"sync_writes"`
}

// QueryConfig configures the query service.
type QueryConfig struct {
	// MemoryLimit is the DuckDB memory limit.
	MemoryLimit string `yaml:"memory_limit"`

	// Timeout is the query timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRows is the maximum number of rows returned.
	MaxRows int `yaml:"max_rows"`
}

// StatsConfig configures corpus statistics collection.
type StatsConfig struct {
	// Enabled enables statistics collection during export.
	Enabled bool `yaml:"enabled"`

	// Accuracy is the sketch relative accuracy (0.01 = 1% error).
	Accuracy float64 `yaml:"accuracy"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "data",
		Export: ExportConfig{
			Format:           "json",
			Compression:      "zstd",
			CompressionLevel: 3,
			GroupByPartition: true,
			Workers:          4,
		},
		Store: StoreConfig{
			SyncWrites: false,
		},
		Query: QueryConfig{
			MemoryLimit: "2GB",
			Timeout:     30 * time.Second,
			MaxRows:     1000000,
		},
		Stats: StatsConfig{
			Enabled:  true,
			Accuracy: 0.01,
		},
	}
}
