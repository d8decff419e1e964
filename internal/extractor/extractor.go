// Package extractor performs the actual decompression of a staged archive.
// The preferred engine is the system unzip utility; when the utility is not
// installed an in-process zip reader takes over. A non-zero exit from the
// utility is a hard failure and is never retried in-process: by that point
// the payload has passed security screening once, and a blind retry would
// bypass the reason the gate exists.
package extractor

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cipher-rc5/crx-util/internal/crxerr"
)

// Extractor decompresses the archive at archivePath into dst.
type Extractor interface {
	Extract(archivePath, dst string) error
}

// New returns the default Extractor.
func New() Extractor { return &SystemExtractor{} }

// SystemExtractor shells out to unzip, falling back to the in-process zip
// reader only when the utility is absent from PATH.
type SystemExtractor struct{}

func (e *SystemExtractor) Extract(archivePath, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return crxerr.Wrap(crxerr.KindExtraction, crxerr.CodeDirCreateFailed, err,
			"failed to create destination directory %s", dst)
	}

	if _, err := exec.LookPath("unzip"); err != nil {
		return (&zipExtractor{}).Extract(archivePath, dst)
	}

	cmd := exec.Command("unzip", "-q", "-o", archivePath, "-d", dst)
	setProcAttr(cmd)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return crxerr.Wrap(crxerr.KindExtraction, crxerr.CodeExtractionFailed, err,
			"unzip failed for %s: %s", archivePath, strings.TrimSpace(string(output)))
	}
	return nil
}

// zipExtractor is the in-process engine.
type zipExtractor struct{}

func (z *zipExtractor) Extract(archivePath, dst string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return crxerr.Wrap(crxerr.KindExtraction, crxerr.CodeExtractionFailed, err,
			"cannot open archive %s", archivePath)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := z.extractFile(f, dst); err != nil {
			return crxerr.Wrap(crxerr.KindExtraction, crxerr.CodeExtractionFailed, err,
				"failed to extract %s", f.Name)
		}
	}
	return nil
}

func (z *zipExtractor) extractFile(f *zip.File, dst string) error {
	path := filepath.Join(dst, filepath.FromSlash(f.Name))
	if !inside(dst, path) {
		return fmt.Errorf("illegal path: %s", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(path, 0o755)
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	return copyFile(rc, path, f.Mode())
}

// inside reports whether path stays within root.
func inside(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

func copyFile(r io.Reader, path string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if mode&0o200 == 0 {
		// Regular files must stay writable so a later run can replace them.
		mode |= 0o200
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}
