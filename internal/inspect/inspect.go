// Package inspect screens a staged archive before any entry is written to
// disk. The summary comes from the zip central directory only; entry
// contents are never decompressed here.
package inspect

import (
	"archive/zip"
	"math"
	"os"

	"github.com/cipher-rc5/crx-util/internal/config"
	"github.com/cipher-rc5/crx-util/internal/crxerr"
)

// Profile describes an archive prior to decompression.
type Profile struct {
	FileCount        uint64
	UncompressedSize uint64
	CompressedSize   uint64
}

// Summarize reads the archive index at path and returns its Profile.
// CompressedSize is the on-disk size of the archive file itself.
func Summarize(path string) (Profile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Profile{}, crxerr.Wrap(crxerr.KindSecurity, crxerr.CodeInspectionFailed, err,
			"cannot stat staged archive %s", path)
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		return Profile{}, crxerr.Wrap(crxerr.KindSecurity, crxerr.CodeInspectionFailed, err,
			"cannot read archive index of %s", path)
	}
	defer r.Close()

	p := Profile{CompressedSize: uint64(info.Size())}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		p.FileCount++
		p.UncompressedSize += f.UncompressedSize64
	}
	return p, nil
}

// Check enforces the configured ceilings against p. Violations are reported
// in a fixed order, ratio first since it is the strongest zip-bomb signal;
// all three ceilings are independently necessary.
func Check(p Profile, cfg *config.Config) error {
	if ratioExceeded(p, cfg.MaxExtractionRatio) {
		return crxerr.Security(crxerr.CodeSuspiciousCompressionRatio,
			"compression ratio %d:%d exceeds the allowed ratio %d",
			p.UncompressedSize, p.CompressedSize, cfg.MaxExtractionRatio)
	}
	if p.FileCount > cfg.MaxExtractedFiles {
		return crxerr.Security(crxerr.CodeTooManyFiles,
			"archive holds %d files, limit is %d", p.FileCount, cfg.MaxExtractedFiles)
	}
	if p.UncompressedSize > cfg.MaxExtractedSize {
		return crxerr.Security(crxerr.CodeExtractedSizeTooLarge,
			"archive expands to %d bytes, limit is %d", p.UncompressedSize, cfg.MaxExtractedSize)
	}
	return nil
}

// ratioExceeded reports whether uncompressed:compressed exceeds maxRatio.
// Cross-multiplying instead of dividing keeps fractional excess over the
// ceiling (e.g. 100.9:1 against 100) from truncating away. A zero
// compressed size cannot produce a meaningful ratio and is an automatic
// violation.
func ratioExceeded(p Profile, maxRatio uint64) bool {
	if p.CompressedSize == 0 {
		return true
	}
	if maxRatio == 0 || p.CompressedSize > math.MaxUint64/maxRatio {
		// The limit exceeds any representable uncompressed size.
		return false
	}
	return p.UncompressedSize > maxRatio*p.CompressedSize
}

// Inspect summarizes and gates the staged archive at path.
func Inspect(path string, cfg *config.Config) (Profile, error) {
	p, err := Summarize(path)
	if err != nil {
		return Profile{}, err
	}
	if err := Check(p, cfg); err != nil {
		return Profile{}, err
	}
	return p, nil
}
