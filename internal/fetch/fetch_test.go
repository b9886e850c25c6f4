package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koalasec/photon-sync/internal/logger"
	"github.com/koalasec/photon-sync/internal/retry"
)

type instantBackoff struct{}

func (instantBackoff) Reset()                  {}
func (instantBackoff) Duration() time.Duration { return 0 }

func newTestFetcher() *Fetcher {
	return New(logger.Discard(), WithBackoffFactory(func() retry.Backoff {
		return instantBackoff{}
	}))
}

func TestFetchSuccess(t *testing.T) {
	payload := []byte("dataset archive bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "archive.tar.bz2")
	f := newTestFetcher()

	n, err := f.Fetch(context.Background(), srv.URL, dest, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// No partial left behind.
	_, err = os.Stat(partialPath(dest))
	assert.True(t, os.IsNotExist(err))
}

func TestFetchRetriesExactlyMaxRetries(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "archive.tar.bz2")
	f := newTestFetcher()

	const maxRetries = 4
	_, err := f.Fetch(context.Background(), srv.URL, dest, maxRetries)

	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, maxRetries, ferr.Attempts)
	assert.Equal(t, maxRetries, hits)

	// Destination must be absent after a failed fetch.
	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(partialPath(dest))
	assert.True(t, os.IsNotExist(err))
}

func TestFetchRecoversAfterTransientFailure(t *testing.T) {
	hits := 0
	payload := []byte("eventually served")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "archive.tar.bz2")
	f := newTestFetcher()

	n, err := f.Fetch(context.Background(), srv.URL, dest, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, 3, hits)
}

func TestFetchTruncatedBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("short"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "archive.tar.bz2")
	f := newTestFetcher()

	_, err := f.Fetch(context.Background(), srv.URL, dest, 2)
	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)

	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestFetchHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "archive.tar.bz2")
	f := newTestFetcher()

	_, err := f.Fetch(ctx, srv.URL, dest, 3)
	assert.Error(t, err)
}

func TestRemoteSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.Header().Set("Content-Length", "12345")
	}))
	defer srv.Close()

	f := newTestFetcher()
	size, err := f.RemoteSize(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), size)
}

func TestSpaceNeeded(t *testing.T) {
	// 100 bytes compressed, 163 extracted.
	assert.Equal(t, uint64(100+163), SpaceNeeded(100, false))
	assert.Equal(t, uint64(100+2*163), SpaceNeeded(100, true))
}

func TestEnsureSpaceUnknownSizeSkipsCheck(t *testing.T) {
	f := newTestFetcher()
	assert.NoError(t, f.EnsureSpace(t.TempDir(), -1, true))
	assert.NoError(t, f.EnsureSpace(t.TempDir(), 0, false))
}

func TestEnsureSpaceRejectsImpossibleRequirement(t *testing.T) {
	f := newTestFetcher()
	// An exabyte of headroom is not available on any test volume.
	err := f.EnsureSpace(t.TempDir(), 1<<60, true)
	var serr *InsufficientSpaceError
	require.ErrorAs(t, err, &serr)
	assert.False(t, serr.Retry())
}
