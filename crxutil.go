// Package crxutil downloads or reads packaged Chrome extensions (CRX
// containers), validates them, and safely extracts their contents.
package crxutil

import (
	"context"

	"github.com/cipher-rc5/crx-util/internal/config"
	"github.com/cipher-rc5/crx-util/internal/crxerr"
	"github.com/cipher-rc5/crx-util/internal/inspect"
	"github.com/cipher-rc5/crx-util/internal/manifest"
	"github.com/cipher-rc5/crx-util/internal/unpacker"
)

// Extract provides a one-call entry point: loads configuration from the
// given file path and runs the full extraction pipeline for input, which is
// either an extension identifier (or Web Store URL) or a local CRX path.
func Extract(ctx context.Context, cfgPath, input string) (*Outcome, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return ExtractWithConfig(ctx, cfg, input)
}

// ExtractWithConfig runs the pipeline using a pre-built configuration.
func ExtractWithConfig(ctx context.Context, cfg *Config, input string) (*Outcome, error) {
	coord, err := unpacker.New(cfg, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return coord.Run(ctx, input)
}

// Config exports the run configuration for library usage.
type Config = config.Config

// DefaultConfig returns a configuration with every limit at its default.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig loads and validates a configuration file.
func LoadConfig(cfgPath string) (*Config, error) {
	return config.Load(cfgPath)
}

// Outcome exports the terminal extraction result.
type Outcome = unpacker.Outcome

// ManifestSummary exports the validated manifest identity fields.
type ManifestSummary = manifest.Summary

// ArchiveProfile exports the pre-extraction security summary.
type ArchiveProfile = inspect.Profile

// ErrorCode returns the stable machine code carried by an extraction error,
// or the empty string for foreign errors.
func ErrorCode(err error) string {
	return crxerr.CodeOf(err)
}

// RecoveryArtifact returns the path of the preserved archive when a failed
// extraction left one behind.
func RecoveryArtifact(err error) string {
	return crxerr.ArtifactOf(err)
}
