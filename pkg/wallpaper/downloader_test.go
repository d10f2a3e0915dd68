package wallpaper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			assert.Equal(t, "Client-ID k", r.Header.Get("Authorization"))
			w.Write([]byte("image-bytes"))
		case "/empty.jpg":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	headers := map[string]string{"Authorization": "Client-ID k"}

	t.Run("Success", func(t *testing.T) {
		path, err := DownloadImage(context.Background(), srv.Client(), srv.URL+"/ok.jpg", dir, "MetMuseum_1", headers)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(filepath.Base(path), "MetMuseum_1-"))
		assert.Equal(t, RawDownloadExt, filepath.Ext(path))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "image-bytes", string(data))
	})

	t.Run("Not found is a reselect", func(t *testing.T) {
		_, err := DownloadImage(context.Background(), srv.Client(), srv.URL+"/missing.jpg", dir, "MetMuseum_2", headers)
		assert.ErrorIs(t, err, provider.ErrNoCandidate)
	})

	t.Run("Empty body is a reselect and leaves no file", func(t *testing.T) {
		_, err := DownloadImage(context.Background(), srv.Client(), srv.URL+"/empty.jpg", dir, "MetMuseum_3", headers)
		assert.ErrorIs(t, err, provider.ErrNoCandidate)
		matches, _ := filepath.Glob(filepath.Join(dir, "MetMuseum_3-*"))
		assert.Empty(t, matches)
	})
}

type stubProcessor struct {
	err error
}

func (p stubProcessor) Process(_ context.Context, rawPath string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	out := rawPath + processedSuffix + ImageExt
	return out, os.WriteFile(out, []byte("processed"), 0644)
}

func TestFinalizeDownload(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "MetMuseum_1-abc"+RawDownloadExt)
	require.NoError(t, os.WriteFile(raw, []byte("raw"), 0644))

	path, err := FinalizeDownload(context.Background(), stubProcessor{}, raw, dir, "MetMuseum_1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "MetMuseum_1"+ImageExt), path)
	assert.NoFileExists(t, raw)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFinalizeDownload_ProcessingFailureIsReselect(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "MetMuseum_2-abc"+RawDownloadExt)
	require.NoError(t, os.WriteFile(raw, []byte("raw"), 0644))

	_, err := FinalizeDownload(context.Background(), stubProcessor{err: assert.AnError}, raw, dir, "MetMuseum_2")
	assert.ErrorIs(t, err, provider.ErrNoCandidate)
	assert.NoFileExists(t, raw)
}

func withStallTimeout(t *testing.T, d time.Duration) {
	t.Helper()
	prev := downloadStallTimeout
	downloadStallTimeout = d
	t.Cleanup(func() { downloadStallTimeout = prev })
}

func TestDownloadImage_SlowBodyIsNotCutOff(t *testing.T) {
	withStallTimeout(t, 200*time.Millisecond)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for range 8 {
			w.Write([]byte("chunk"))
			w.(http.Flusher).Flush()
			time.Sleep(50 * time.Millisecond)
		}
	}))
	defer srv.Close()

	start := time.Now()
	path, err := DownloadImage(context.Background(), NewHTTPClient(nil), srv.URL, t.TempDir(), "MetMuseum_1", nil)
	require.NoError(t, err)
	assert.Greater(t, time.Since(start), downloadStallTimeout, "the whole body took longer than the stall timeout")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("chunk", 8), string(data))
}

func TestDownloadImage_StalledBodyIsAborted(t *testing.T) {
	withStallTimeout(t, 100*time.Millisecond)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	start := time.Now()
	_, err := DownloadImage(context.Background(), srv.Client(), srv.URL, dir, "MetMuseum_2", nil)
	assert.ErrorIs(t, err, ErrDownloadStalled)
	assert.Less(t, time.Since(start), 3*time.Second)

	matches, _ := filepath.Glob(filepath.Join(dir, "MetMuseum_2-*"))
	assert.Empty(t, matches, "the partial download is removed")
}

func TestDownloadImage_CallerCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := DownloadImage(ctx, srv.Client(), srv.URL, t.TempDir(), "MetMuseum_3", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDownloadStalled)
}
