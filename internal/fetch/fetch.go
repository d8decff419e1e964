// Package fetch acquires raw container bytes, either from the extension
// update service or from a local file.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/cipher-rc5/crx-util/internal/config"
	"github.com/cipher-rc5/crx-util/internal/crx"
	"github.com/cipher-rc5/crx-util/internal/crxerr"
	"github.com/cipher-rc5/crx-util/internal/webstore"
)

// Client acquires the full container byte sequence for one input.
type Client interface {
	Fetch(ctx context.Context, input string) ([]byte, error)
}

// Fetcher is the default Client. It selects remote or local acquisition by
// pattern-matching the input for an extension identifier.
type Fetcher struct {
	cfg    *config.Config
	client *http.Client
	urlFor func(id string) string
}

// New builds a Fetcher. The HTTP client follows redirects and carries no
// global timeout; each request is bounded by a per-call context deadline.
func New(cfg *config.Config) *Fetcher {
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		urlFor: webstore.DownloadURL,
	}
}

// Fetch returns the raw container bytes for input.
func (f *Fetcher) Fetch(ctx context.Context, input string) ([]byte, error) {
	if id, ok := webstore.ExtensionID(input); ok {
		return f.download(ctx, id)
	}
	return f.readLocal(input)
}

func (f *Fetcher) download(ctx context.Context, id string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.DownloadTimeout())
	defer cancel()

	url := f.urlFor(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, crxerr.Wrap(crxerr.KindDownload, crxerr.CodeDownloadFailed, err,
			"failed to create request for %s", url)
	}
	req.Header.Set("User-Agent", webstore.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, crxerr.Wrap(crxerr.KindDownload, crxerr.CodeDownloadTimeout, err,
				"download of %s timed out after %s", id, f.cfg.DownloadTimeout())
		}
		return nil, crxerr.Wrap(crxerr.KindDownload, crxerr.CodeDownloadFailed, err,
			"failed to download %s", id)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, crxerr.Download(crxerr.CodeDownloadFailed,
			"download of %s failed with status %d", id, resp.StatusCode)
	}
	// An HTML response is an interstitial or error page, never the artifact.
	if ct := resp.Header.Get("Content-Type"); strings.Contains(strings.ToLower(ct), "text/html") {
		return nil, crxerr.Download(crxerr.CodeDownloadFailed,
			"server returned an HTML document instead of a CRX for %s", id)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, crxerr.Wrap(crxerr.KindDownload, crxerr.CodeDownloadTimeout, err,
				"download of %s timed out after %s", id, f.cfg.DownloadTimeout())
		}
		return nil, crxerr.Wrap(crxerr.KindDownload, crxerr.CodeDownloadFailed, err,
			"failed to read response body for %s", id)
	}

	if !crx.HasMagic(data) {
		return nil, crxerr.Validation(crxerr.CodeMalformedInput,
			"downloaded data for %s does not start with the CRX magic", id)
	}
	return data, nil
}

// readLocal runs the existence check, stat, and content read as independent
// concurrent operations and joins them before deciding.
func (f *Fetcher) readLocal(path string) ([]byte, error) {
	var (
		wg       sync.WaitGroup
		exists   bool
		size     int64
		data     []byte
		statErr  error
		readErr  error
		existErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		_, err := os.Stat(path)
		exists = err == nil
		existErr = err
	}()
	go func() {
		defer wg.Done()
		info, err := os.Stat(path)
		if err != nil {
			statErr = err
			return
		}
		size = info.Size()
	}()
	go func() {
		defer wg.Done()
		data, readErr = os.ReadFile(path)
	}()
	wg.Wait()

	if !exists || statErr != nil || readErr != nil {
		cause := errors.Join(existErr, statErr, readErr)
		return nil, crxerr.Wrap(crxerr.KindValidation, crxerr.CodeNotFound, cause,
			"cannot read local file %s", path)
	}
	if size > f.cfg.MaxFileSize {
		return nil, crxerr.Validation(crxerr.CodeTooLarge,
			"file %s is %d bytes, limit is %d", path, size, f.cfg.MaxFileSize)
	}
	return data, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
