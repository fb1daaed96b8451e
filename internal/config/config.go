// Package config loads the vendorsum YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eunmann/vendorsum/pkg/logging"
	"github.com/eunmann/vendorsum/pkg/s3fetch"
	"github.com/eunmann/vendorsum/pkg/source"
	"github.com/eunmann/vendorsum/pkg/store"
	"github.com/eunmann/vendorsum/pkg/summary"
)

// Config is the full pipeline configuration. Fields missing from the YAML
// file keep their Default values.
type Config struct {
	// RawDir holds the raw input files.
	RawDir string `yaml:"raw_dir"`
	// SourceURI, when set to s3://bucket/prefix, is staged into RawDir
	// before ingestion.
	SourceURI string       `yaml:"source_uri"`
	Database  store.Config `yaml:"database"`
	ChunkSize int          `yaml:"chunk_size"`
	// OutputDir receives exported tables.
	OutputDir string          `yaml:"output_dir"`
	Tables    summary.Tables  `yaml:"tables"`
	Log       logging.Options `yaml:"log"`
	// MetricsFile, when set, receives the run's metrics in Prometheus
	// text format.
	MetricsFile string               `yaml:"metrics_file"`
	S3          s3fetch.ClientConfig `yaml:"s3"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	log := logging.DefaultOptions()
	log.File = filepath.Join("logs", "vendorsum.log")
	return Config{
		RawDir:    filepath.Join("data", "raw"),
		Database:  store.DefaultConfig(filepath.Join("database", "inventory.db")),
		ChunkSize: source.DefaultChunkSize,
		OutputDir: filepath.Join("data", "processed"),
		Tables:    summary.DefaultTables(),
		Log:       log,
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration values and returns an error for invalid settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RawDir) == "" {
		return errors.New("raw_dir is required")
	}
	if c.SourceURI != "" {
		if _, _, err := s3fetch.ParseS3URI(c.SourceURI); err != nil {
			return fmt.Errorf("source_uri: %w", err)
		}
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output_dir is required")
	}
	if err := c.Tables.Validate(); err != nil {
		return fmt.Errorf("tables: %w", err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}
