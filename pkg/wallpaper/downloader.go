package wallpaper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/google/uuid"
)

// ErrDownloadStalled reports a download that stopped receiving data.
var ErrDownloadStalled = errors.New("download stalled")

var downloadStallTimeout = DownloadStallTimeout

// stallReader pushes the stall deadline back whenever data arrives.
type stallReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (s *stallReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 {
		s.timer.Reset(s.timeout)
	}
	return n, err
}

// DownloadImage fetches url into a uniquely named raw file inside dir and returns
// its path. Non-2xx responses, empty bodies and oversized bodies are rejected with
// ErrNoCandidate so the caller can select another artwork. The download is aborted
// with ErrDownloadStalled when no data arrives for DownloadStallTimeout.
func DownloadImage(ctx context.Context, client *http.Client, url, dir, key string, headers map[string]string) (string, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stall := time.AfterFunc(downloadStallTimeout, func() { cancel(ErrDownloadStalled) })
	defer stall.Stop()

	rawPath, err := download(ctx, client, url, dir, key, headers, stall)
	if err != nil && errors.Is(context.Cause(ctx), ErrDownloadStalled) {
		return "", fmt.Errorf("image download %s: %w", key, ErrDownloadStalled)
	}
	return rawPath, err
}

func download(ctx context.Context, client *http.Client, url, dir, key string, headers map[string]string, stall *time.Timer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: bad image url %q: %v", provider.ErrNoCandidate, url, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	stall.Reset(downloadStallTimeout)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: image download %s: status %d", provider.ErrNoCandidate, key, resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrStorage, err)
	}
	rawPath := filepath.Join(dir, key+"-"+uuid.NewString()+RawDownloadExt)
	file, err := os.Create(rawPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrStorage, err)
	}

	const limit = MaxImageDownloadMB << 20
	body := &stallReader{r: resp.Body, timer: stall, timeout: downloadStallTimeout}
	written, err := io.Copy(file, io.LimitReader(body, limit+1))
	closeErr := file.Close()
	if err = errors.Join(err, closeErr); err != nil {
		os.Remove(rawPath)
		return "", fmt.Errorf("image download %s: %w", key, err)
	}
	if written == 0 {
		os.Remove(rawPath)
		return "", fmt.Errorf("%w: image download %s: empty body", provider.ErrNoCandidate, key)
	}
	if written > limit {
		os.Remove(rawPath)
		return "", fmt.Errorf("%w: image download %s: larger than %d MB", provider.ErrNoCandidate, key, MaxImageDownloadMB)
	}
	return rawPath, nil
}

// FinalizeDownload runs rawPath through processor and moves the result to
// <cacheDir>/<key>.jpg. The raw file is always removed. A processing failure is
// reported as ErrNoCandidate.
func FinalizeDownload(ctx context.Context, processor provider.ImageProcessor, rawPath, cacheDir, key string) (string, error) {
	defer os.Remove(rawPath)

	processed, err := processor.Process(ctx, rawPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: processing %s: %v", provider.ErrNoCandidate, key, err)
	}

	dest := filepath.Join(cacheDir, key+ImageExt)
	if err := os.Rename(processed, dest); err != nil {
		os.Remove(processed)
		return "", fmt.Errorf("%w: %v", provider.ErrStorage, err)
	}
	return dest, nil
}
