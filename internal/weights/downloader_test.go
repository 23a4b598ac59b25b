// Package weights_test tests the bundle downloader.
package weights_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/weights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "test-log.log")
	require.NoError(t, err)

	return testLogger
}

func TestNewRejectsEmptyBaseURL(t *testing.T) {
	t.Parallel()

	_, err := weights.New("", newTestLogger(t))
	require.ErrorIs(t, err, weights.ErrBaseURLEmpty)
}

func TestEnsureDownloadsBundle(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/models--t5-base", r.URL.Path)
			_, _ = w.Write([]byte("bundle-bytes"))
		}),
	)
	t.Cleanup(server.Close)

	downloader, err := weights.New(server.URL, newTestLogger(t))
	require.NoError(t, err)

	destDir := filepath.Join(t.TempDir(), "hub")
	require.NoError(t, downloader.Ensure(context.Background(), "models--t5-base", destDir))

	data, err := os.ReadFile(filepath.Join(destDir, "models--t5-base"))
	require.NoError(t, err)
	assert.Equal(t, []byte("bundle-bytes"), data)

	// No .tmp leftovers after a successful rename.
	_, statErr := os.Stat(filepath.Join(destDir, "models--t5-base.tmp"))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestEnsureSkipsPresentBundle(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			_, _ = w.Write([]byte("bundle-bytes"))
		}),
	)
	t.Cleanup(server.Close)

	downloader, err := weights.New(server.URL, newTestLogger(t))
	require.NoError(t, err)

	destDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(destDir, "encodec_32khz"), []byte("cached"), 0o600,
	))

	require.NoError(t, downloader.Ensure(context.Background(), "encodec_32khz", destDir))
	assert.Equal(t, int64(0), hits.Load())

	data, err := os.ReadFile(filepath.Join(destDir, "encodec_32khz"))
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), data)
}

func TestEnsureRejectsEmptyBundleName(t *testing.T) {
	t.Parallel()

	downloader, err := weights.New("http://localhost:1", newTestLogger(t))
	require.NoError(t, err)

	require.ErrorIs(
		t,
		downloader.Ensure(context.Background(), "", t.TempDir()),
		weights.ErrBundleEmpty,
	)
}

func TestEnsureReportsBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		}),
	)
	t.Cleanup(server.Close)

	downloader, err := weights.New(server.URL, newTestLogger(t))
	require.NoError(t, err)

	destDir := t.TempDir()
	err = downloader.Ensure(context.Background(), "missing-bundle", destDir)
	require.ErrorIs(t, err, weights.ErrBadStatus)

	// A failed download must not leave a file that later reads as cached.
	_, statErr := os.Stat(filepath.Join(destDir, "missing-bundle"))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}
