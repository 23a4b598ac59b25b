// Package weights fetches and caches named model weight bundles.
package weights

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"
)

// Directory and file permissions for downloaded bundles.
const (
	dirPermissions = 0o750
)

// Static errors.
var (
	ErrBaseURLEmpty = errors.New("weights base URL cannot be empty")
	ErrBundleEmpty  = errors.New("bundle name cannot be empty")
	ErrBadStatus    = errors.New("unexpected HTTP status")
)

// HTTPDownloader implements core.WeightsFetcher by downloading bundles from
// a base URL into a local cache directory. Bundles already present are never
// re-fetched.
type HTTPDownloader struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// New creates a downloader rooted at baseURL.
func New(baseURL string, log *logger.Logger) (*HTTPDownloader, error) {
	if baseURL == "" {
		return nil, ErrBaseURLEmpty
	}

	return &HTTPDownloader{
		baseURL: baseURL,
		// Weight bundles are large; downloads run without a client timeout
		// and rely on the caller's context for cancellation.
		client: &http.Client{},
		log:    log,
	}, nil
}

// Ensure makes the named bundle available under destDir. The bundle is
// downloaded to a temporary file first and renamed into place, so a partial
// download never looks like a cached bundle.
func (d *HTTPDownloader) Ensure(ctx context.Context, bundle, destDir string) error {
	if bundle == "" {
		return ErrBundleEmpty
	}

	destPath := filepath.Join(destDir, bundle)

	_, statErr := os.Stat(destPath)
	if statErr == nil {
		d.log.Info("Bundle '%s' already present, skipping download", bundle)

		return nil
	}

	dirErr := os.MkdirAll(destDir, dirPermissions)
	if dirErr != nil {
		return fmt.Errorf("failed to create destination directory: %w", dirErr)
	}

	d.log.Info("Downloading bundle '%s' to '%s'", bundle, destDir)

	tmpPath := destPath + ".tmp"

	downloadErr := d.downloadTo(ctx, d.baseURL+"/"+bundle, tmpPath)
	if downloadErr != nil {
		removeErr := os.Remove(tmpPath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			d.log.Warn("Failed to remove partial download '%s': %v", tmpPath, removeErr)
		}

		return fmt.Errorf("failed to download bundle '%s': %w", bundle, downloadErr)
	}

	renameErr := os.Rename(tmpPath, destPath)
	if renameErr != nil {
		return fmt.Errorf("failed to move bundle into place: %w", renameErr)
	}

	return nil
}

// downloadTo streams a URL into a local file.
func (d *HTTPDownloader) downloadTo(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch '%s': %w", url, err)
	}

	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			d.log.Warn("Failed to close response body: %v", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s from '%s'", ErrBadStatus, resp.Status, url)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file '%s': %w", path, err)
	}

	_, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()

	if copyErr != nil {
		return fmt.Errorf("failed to write '%s': %w", path, copyErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close '%s': %w", path, closeErr)
	}

	return nil
}
