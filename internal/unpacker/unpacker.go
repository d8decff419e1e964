// Package unpacker orchestrates one extraction attempt: acquire the
// container, parse its header, stage the payload, gate it through the
// security inspection, decompress, and atomically publish the result.
package unpacker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/sirupsen/logrus"

	"github.com/cipher-rc5/crx-util/internal/config"
	"github.com/cipher-rc5/crx-util/internal/crx"
	"github.com/cipher-rc5/crx-util/internal/crxerr"
	"github.com/cipher-rc5/crx-util/internal/extractor"
	"github.com/cipher-rc5/crx-util/internal/fetch"
	"github.com/cipher-rc5/crx-util/internal/inspect"
	"github.com/cipher-rc5/crx-util/internal/manifest"
	"github.com/cipher-rc5/crx-util/internal/pathguard"
	"github.com/cipher-rc5/crx-util/internal/webstore"
)

// FallbackArchiveName is the fixed recovery-artifact name written into the
// intended output directory when decompression fails.
const FallbackArchiveName = "extension.zip"

const stagedArchiveName = "payload.zip"

// Outcome is the terminal result of a successful extraction.
type Outcome struct {
	OutputDir   string
	ArchivePath string
	Profile     inspect.Profile
	// Manifest is nil when the manifest was missing or invalid; that
	// degrades to a warning, never a failure.
	Manifest *manifest.Summary
}

// Coordinator runs one extraction at a time. Each attempt should use an
// independently constructed Coordinator.
type Coordinator struct {
	cfg       *config.Config
	guard     *pathguard.Guard
	fetcher   fetch.Client
	extractor extractor.Extractor
	log       *logrus.Logger
}

// New builds a Coordinator. Nil collaborators get defaults, mirroring the
// configuration's limits. The working directory is snapshotted here; a
// later chdir cannot move the guard's trust boundary.
func New(cfg *config.Config, f fetch.Client, e extractor.Extractor, log *logrus.Logger) (*Coordinator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if f == nil {
		f = fetch.New(cfg)
	}
	if e == nil {
		e = extractor.New()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cannot capture working directory: %w", err)
	}

	// The staging area lives under the system temp root, so that root is
	// part of the guard for the lifetime of this coordinator.
	roots := append([]string{}, cfg.AllowedOutputPaths...)
	roots = append(roots, os.TempDir())

	return &Coordinator{
		cfg:       cfg,
		guard:     pathguard.New(roots, workDir),
		fetcher:   f,
		extractor: e,
		log:       log,
	}, nil
}

// Run executes the full pipeline for input and returns a terminal outcome.
// There is no partial success: either the output directory is fully
// populated or a typed error is returned.
func (c *Coordinator) Run(ctx context.Context, input string) (*Outcome, error) {
	c.log.Infof("acquiring %s", input)
	data, err := c.fetcher.Fetch(ctx, input)
	if err != nil {
		return nil, err
	}

	header, err := crx.ParseHeader(data)
	if err != nil {
		return nil, err
	}
	c.log.Debugf("parsed CRX v%d header, payload at offset %d", header.Version, header.PayloadOffset)

	payload := data[header.PayloadOffset:]
	name := pathguard.SanitizeName(displayName(input))

	stagingDir, err := c.stage(payload)
	if stagingDir != "" {
		// Unconditional cleanup on every exit path.
		defer os.RemoveAll(stagingDir)
	}
	if err != nil {
		return nil, err
	}
	staged := filepath.Join(stagingDir, stagedArchiveName)

	profile, err := inspect.Inspect(staged, c.cfg)
	if err != nil {
		// Security rejections leave no trace of the payload behind.
		return nil, err
	}
	c.log.Debugf("security check passed: %d files, %d bytes uncompressed, %d bytes compressed",
		profile.FileCount, profile.UncompressedSize, profile.CompressedSize)

	outputDir, err := c.outputDir(name)
	if err != nil {
		return nil, err
	}

	unpacked := filepath.Join(stagingDir, "unpacked")
	if err := c.extractor.Extract(staged, unpacked); err != nil {
		return nil, c.preserveFallback(err, payload, outputDir)
	}

	prevVersion := c.previousVersion(outputDir)

	if err := c.publish(unpacked, outputDir); err != nil {
		return nil, err
	}

	archivePath, err := c.saveContainerCopy(data, name, outputDir)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{OutputDir: outputDir, ArchivePath: archivePath, Profile: profile}
	outcome.Manifest = c.readManifest(outputDir, prevVersion)

	c.log.Infof("extracted %s to %s", input, outputDir)
	return outcome, nil
}

// stage creates a unique temporary working directory and writes the payload
// into it as a single archive file.
func (c *Coordinator) stage(payload []byte) (string, error) {
	stagingDir, err := os.MkdirTemp("", "crx-util-*")
	if err != nil {
		return "", crxerr.Wrap(crxerr.KindExtraction, crxerr.CodeDirCreateFailed, err,
			"cannot create staging directory")
	}

	if _, err := c.guard.Resolve(stagingDir); err != nil {
		return stagingDir, err
	}

	staged := filepath.Join(stagingDir, stagedArchiveName)
	if err := os.WriteFile(staged, payload, 0o600); err != nil {
		return stagingDir, crxerr.Wrap(crxerr.KindExtraction, crxerr.CodeExtractionFailed, err,
			"cannot write staged archive")
	}
	return stagingDir, nil
}

// outputDir composes and validates the final output directory for name.
func (c *Coordinator) outputDir(name string) (string, error) {
	base, err := c.guard.Resolve(c.cfg.ExtensionsDir)
	if err != nil {
		return "", err
	}
	out, err := securejoin.SecureJoin(base, name)
	if err != nil {
		return "", crxerr.Wrap(crxerr.KindSecurity, crxerr.CodePathOutsideAllowedRoots, err,
			"cannot compose output path for %q", name)
	}
	return c.guard.Resolve(out)
}

// preserveFallback persists the unextracted payload into the intended
// output directory so an operator can inspect or retry manually, and wraps
// err with the artifact path. The payload passed security screening, so
// keeping it is safe; this is the one failure that leaves durable state.
func (c *Coordinator) preserveFallback(cause error, payload []byte, outputDir string) error {
	if _, err := c.guard.Resolve(outputDir); err != nil {
		return cause
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		c.log.Warnf("cannot create fallback directory %s: %v", outputDir, err)
		return cause
	}
	artifact := filepath.Join(outputDir, FallbackArchiveName)
	if err := os.WriteFile(artifact, payload, 0o644); err != nil {
		c.log.Warnf("cannot preserve fallback archive at %s: %v", artifact, err)
		return cause
	}
	c.log.Warnf("decompression failed, archive preserved at %s", artifact)
	return &crxerr.Error{
		Kind:     crxerr.KindExtraction,
		Code:     crxerr.CodeExtractionFailed,
		Message:  fmt.Sprintf("decompression failed, archive preserved at %s: %v", artifact, cause),
		Artifact: artifact,
	}
}

// publish replaces outputDir's contents with the extracted tree. The
// previous contents are cleared first: each extraction represents the
// current state of one named extension.
func (c *Coordinator) publish(unpacked, outputDir string) error {
	parent := filepath.Dir(outputDir)
	if _, err := c.guard.Resolve(parent); err != nil {
		return err
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return crxerr.Wrap(crxerr.KindExtraction, crxerr.CodeDirCreateFailed, err,
			"cannot create %s", parent)
	}

	if _, err := c.guard.Resolve(outputDir); err != nil {
		return err
	}
	if err := os.RemoveAll(outputDir); err != nil {
		return crxerr.Wrap(crxerr.KindExtraction, crxerr.CodeDirCreateFailed, err,
			"cannot clear previous contents of %s", outputDir)
	}

	if err := os.Rename(unpacked, outputDir); err == nil {
		return nil
	}
	// Rename fails across devices; the staging area usually lives on a
	// different filesystem than the output root.
	if err := copyTree(unpacked, outputDir); err != nil {
		return crxerr.Wrap(crxerr.KindExtraction, crxerr.CodeExtractionFailed, err,
			"cannot move extracted files into %s", outputDir)
	}
	return nil
}

// saveContainerCopy writes the original container bytes alongside the
// output directory.
func (c *Coordinator) saveContainerCopy(data []byte, name, outputDir string) (string, error) {
	path := filepath.Join(filepath.Dir(outputDir), name+".crx")
	if _, err := c.guard.Resolve(path); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", crxerr.Wrap(crxerr.KindExtraction, crxerr.CodeExtractionFailed, err,
			"cannot save container copy to %s", path)
	}
	return path, nil
}

// previousVersion reads the version of a manifest already installed at
// outputDir, if any. Best effort.
func (c *Coordinator) previousVersion(outputDir string) string {
	s, err := manifest.ReadFile(outputDir)
	if err != nil {
		return ""
	}
	return s.Version
}

// readManifest validates the published manifest. A missing or invalid
// manifest does not indicate corruption of the already-validated payload,
// so failure degrades to a warning.
func (c *Coordinator) readManifest(outputDir, prevVersion string) *manifest.Summary {
	s, err := manifest.ReadFile(outputDir)
	if err != nil {
		c.log.Warnf("manifest check failed: %v", err)
		return nil
	}
	if prevVersion != "" {
		switch manifest.CompareVersions(prevVersion, s.Version) {
		case "upgrade":
			c.log.Infof("upgraded %s: %s -> %s", s.Name, prevVersion, s.Version)
		case "downgrade":
			c.log.Warnf("downgraded %s: %s -> %s", s.Name, prevVersion, s.Version)
		}
	}
	return s
}

// displayName derives a human name for the extension from the input: the
// identifier for hosted extensions, the file base name otherwise.
func displayName(input string) string {
	if id, ok := webstore.ExtensionID(input); ok {
		return id
	}
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// copyTree recursively copies the directory tree at src into dst.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFileContents(path, target, info.Mode().Perm())
	})
}

func copyFileContents(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	// A buffered write can surface its failure only at close; dropping it
	// would publish a truncated file.
	return out.Close()
}
