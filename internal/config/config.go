package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for every independently overridable limit.
const (
	DefaultMaxFileSize        = 500 * 1024 * 1024 // 500 MiB container ceiling
	DefaultDownloadTimeoutMS  = 30000             // 30 s
	DefaultMaxExtractionRatio = 100               // uncompressed:compressed
	DefaultMaxExtractedFiles  = 10000
	DefaultMaxExtractedSize   = 1 * 1024 * 1024 * 1024 // 1 GiB
	DefaultExtensionsDir      = "extensions"
	DefaultLogLevel           = "info"
)

// Config is the immutable run configuration. It is constructed once per run
// and passed by pointer into every component, never mutated afterwards.
type Config struct {
	MaxFileSize        int64    `yaml:"max_file_size"`
	DownloadTimeoutMS  int64    `yaml:"download_timeout_ms"`
	MaxExtractionRatio uint64   `yaml:"max_extraction_ratio"`
	MaxExtractedFiles  uint64   `yaml:"max_extracted_files"`
	MaxExtractedSize   uint64   `yaml:"max_extracted_size"`
	AllowedOutputPaths []string `yaml:"allowed_output_paths"`
	ExtensionsDir      string   `yaml:"extensions_dir"`
	LogLevel           string   `yaml:"log_level"`
}

// Default returns a Config with every field at its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.normalize()
	return cfg
}

// Load reads a YAML config file, fills in defaults for unset fields, and
// validates the result.
func Load(cfgPath string) (*Config, error) {
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", cfgPath, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.normalize()
	return &cfg, nil
}

// DownloadTimeout returns the download timeout as a duration.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutMS) * time.Millisecond
}

func (c *Config) applyDefaults() {
	if c.MaxFileSize == 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.DownloadTimeoutMS == 0 {
		c.DownloadTimeoutMS = DefaultDownloadTimeoutMS
	}
	if c.MaxExtractionRatio == 0 {
		c.MaxExtractionRatio = DefaultMaxExtractionRatio
	}
	if c.MaxExtractedFiles == 0 {
		c.MaxExtractedFiles = DefaultMaxExtractedFiles
	}
	if c.MaxExtractedSize == 0 {
		c.MaxExtractedSize = DefaultMaxExtractedSize
	}
	if len(c.AllowedOutputPaths) == 0 {
		c.AllowedOutputPaths = []string{"."}
	}
	if c.ExtensionsDir == "" {
		c.ExtensionsDir = DefaultExtensionsDir
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

func (c *Config) validate() error {
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must be positive")
	}
	if c.DownloadTimeoutMS < 0 {
		return fmt.Errorf("download_timeout_ms must be positive")
	}
	for i, p := range c.AllowedOutputPaths {
		if p == "" {
			return fmt.Errorf("allowed_output_paths entry at index %d is empty", i)
		}
	}
	return nil
}

func (c *Config) normalize() {
	for i := range c.AllowedOutputPaths {
		c.AllowedOutputPaths[i] = filepath.Clean(c.AllowedOutputPaths[i])
	}
	c.ExtensionsDir = filepath.Clean(c.ExtensionsDir)
}
