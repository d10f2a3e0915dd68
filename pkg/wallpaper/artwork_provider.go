package wallpaper

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/dixieflatline76/Easel/util/log"
)

// SourceResolver returns the source to use for the next attempt.
type SourceResolver func() (provider.Source, error)

// ArtworkProvider wraps a Source with connectivity awareness, bounded retries and
// an offline fallback to the fetch cache. It owns the fetch cache directory.
type ArtworkProvider struct {
	source     SourceResolver
	cache      *FileManager
	probe      Probe
	metrics    *Metrics
	maxRetries int
	backoff    func(attempt int) time.Duration
}

// ProviderOption customizes an ArtworkProvider.
type ProviderOption func(*ArtworkProvider)

// WithBackoff replaces the delay applied before retry number attempt (1-based).
func WithBackoff(fn func(attempt int) time.Duration) ProviderOption {
	return func(p *ArtworkProvider) { p.backoff = fn }
}

// WithMaxRetries replaces the attempt bound.
func WithMaxRetries(n int) ProviderOption {
	return func(p *ArtworkProvider) { p.maxRetries = max(n, 1) }
}

// WithProviderMetrics records fetch attempts.
func WithProviderMetrics(m *Metrics) ProviderOption {
	return func(p *ArtworkProvider) { p.metrics = m }
}

// NewArtworkProvider creates a provider fetching through source into cacheDir.
func NewArtworkProvider(source SourceResolver, cacheDir string, probe Probe, opts ...ProviderOption) (*ArtworkProvider, error) {
	p := &ArtworkProvider{
		source:     source,
		cache:      NewFileManager(cacheDir, cacheDir),
		probe:      probe,
		maxRetries: MaxFetchRetries,
		backoff:    DefaultBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.cache.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrStorage, err)
	}
	return p, nil
}

// DefaultBackoff grows linearly with the attempt number up to MaxRetryBackoff.
func DefaultBackoff(attempt int) time.Duration {
	return min(RetryBackoffStep*time.Duration(attempt), MaxRetryBackoff)
}

// CacheDir returns the fetch cache directory.
func (p *ArtworkProvider) CacheDir() string {
	return p.cache.ImageDir()
}

// Fetch returns a fresh artwork when online, or a random cached one when offline.
func (p *ArtworkProvider) Fetch(ctx context.Context) (provider.Artwork, error) {
	if !p.probe.Available(ctx) {
		log.Print("Provider: offline, falling back to fetch cache")
		return p.randomCached()
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, p.backoff(attempt-1)); err != nil {
				return provider.Artwork{}, err
			}
		}

		src, err := p.source()
		if err != nil {
			return provider.Artwork{}, fmt.Errorf("%w: %w", provider.ErrFetchFailed, err)
		}

		art, err := src.FetchRandom(ctx)
		if err == nil {
			p.metrics.fetchAttempt("success")
			if err := p.cache.WriteMetadata(art.Metadata); err != nil {
				log.Printf("Provider: could not write cache sidecar for %s: %v", art.Metadata.Key(), err)
			}
			return art, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return provider.Artwork{}, ctxErr
		}

		p.metrics.fetchAttempt("failure")
		log.Printf("Provider: attempt %d/%d from %s failed: %v", attempt, p.maxRetries, src.Name(), err)
		lastErr = err
	}
	return provider.Artwork{}, fmt.Errorf("%w after %d attempts: %w", provider.ErrFetchFailed, p.maxRetries, lastErr)
}

// randomCached picks a random (image, sidecar) pair from the fetch cache.
func (p *ArtworkProvider) randomCached() (provider.Artwork, error) {
	sidecars, err := p.cache.MetadataKeys()
	if err != nil {
		return provider.Artwork{}, fmt.Errorf("%w: %v", provider.ErrStorage, err)
	}

	keys := make([]string, 0, len(sidecars))
	for key := range sidecars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	for _, key := range keys {
		path, ok := p.cache.FindImage(key)
		if !ok {
			continue
		}
		meta, err := p.cache.ReadMetadata(key)
		if err != nil {
			continue
		}
		return provider.Artwork{Path: path, Metadata: meta}, nil
	}
	return provider.Artwork{}, fmt.Errorf("%w: %w", provider.ErrNetworkUnavailable, provider.ErrNoCachedArtwork)
}

// CleanupCacheFiles deletes every fetch-cache file that does not belong to
// exceptKey, including stale raw downloads. Failures are logged, never returned.
func (p *ArtworkProvider) CleanupCacheFiles(exceptKey string) {
	entries, err := os.ReadDir(p.cache.ImageDir())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Provider: cache cleanup: %v", err)
		}
		return
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if exceptKey != "" && strings.TrimSuffix(name, filepath.Ext(name)) == exceptKey {
			continue
		}
		if removeIfExists(filepath.Join(p.cache.ImageDir(), name)) == nil {
			removed++
		}
	}
	if removed > 0 {
		log.Debugf("Provider: removed %d cache files (kept %q)", removed, exceptKey)
	}
}

// ClearCache removes every file from the fetch cache.
func (p *ArtworkProvider) ClearCache() {
	p.CleanupCacheFiles("")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
