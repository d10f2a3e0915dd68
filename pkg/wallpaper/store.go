package wallpaper

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/dixieflatline76/Easel/util/fsutil"
	"github.com/dixieflatline76/Easel/util/log"
)

// ArtworkStore is the durable collection of artworks that have been shown:
// images under artworks/ and one metadata sidecar per image under metadata/.
// Mutations are serialized; listings are memoized until the next mutation.
type ArtworkStore struct {
	fm          *FileManager
	maxArtworks func() int
	metrics     *Metrics

	mu      sync.Mutex // serializes mutations
	listing *listingCache[[]provider.Artwork]
}

// StoreStats summarizes the store's disk usage.
type StoreStats struct {
	Count      int   `json:"count"`
	TotalBytes int64 `json:"totalBytes"`
	Capacity   int   `json:"capacity"`
}

// NewArtworkStore creates a store rooted at artworksDir and metadataDir.
// maxArtworks is consulted on every eviction so a settings change takes effect
// without rebuilding the store.
func NewArtworkStore(artworksDir, metadataDir string, maxArtworks func() int, metrics *Metrics) (*ArtworkStore, error) {
	fm := NewFileManager(artworksDir, metadataDir)
	if err := fm.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrStorage, err)
	}
	s := &ArtworkStore{fm: fm, maxArtworks: maxArtworks, metrics: metrics}
	s.listing = newListingCache(s.scan)
	return s, nil
}

// Save copies the image at sourcePath into the store under meta's identity key and
// writes its sidecar. Saving an existing key replaces it.
func (s *ArtworkStore) Save(sourcePath string, meta provider.Metadata) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.listing.Invalidate()

	key := meta.Key()
	ext := strings.ToLower(filepath.Ext(sourcePath))
	if ext == "" {
		ext = ImageExt
	}
	dest, err := s.fm.ImagePath(key, ext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrStorage, err)
	}

	// A previous save under another extension would leave two images for one key.
	if existing, ok := s.fm.FindImage(key); ok && existing != dest {
		_ = removeIfExists(existing)
	}

	if err := fsutil.CopyFile(sourcePath, dest); err != nil {
		return "", fmt.Errorf("%w: copy %s: %v", provider.ErrStorage, filepath.Base(sourcePath), err)
	}
	if err := s.fm.WriteMetadata(meta); err != nil {
		_ = removeIfExists(dest)
		return "", fmt.Errorf("%w: write metadata %s: %v", provider.ErrStorage, key, err)
	}
	log.Debugf("Store: saved %s", key)
	return dest, nil
}

// ListAll returns every artwork that has both an image and a readable sidecar,
// newest first.
func (s *ArtworkStore) ListAll() ([]provider.Artwork, error) {
	list, err := s.listing.GetOrLoad()
	if err != nil {
		return nil, err
	}
	return append([]provider.Artwork(nil), list...), nil
}

// PathFor returns the stored image path for key.
func (s *ArtworkStore) PathFor(key string) (string, bool) {
	art, ok := s.Lookup(key)
	return art.Path, ok
}

// Lookup returns the stored artwork for key.
func (s *ArtworkStore) Lookup(key string) (provider.Artwork, bool) {
	list, err := s.listing.GetOrLoad()
	if err != nil {
		log.Printf("Store: listing failed: %v", err)
		return provider.Artwork{}, false
	}
	for _, a := range list {
		if a.Metadata.Key() == key {
			return a, true
		}
	}
	return provider.Artwork{}, false
}

// EvictExcess deletes the oldest artworks (by fetch time) beyond the capacity and
// returns how many were removed.
func (s *ArtworkStore) EvictExcess() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.scan()
	if err != nil {
		return 0, err
	}
	limit := s.maxArtworks()
	if len(list) <= limit {
		return 0, nil
	}
	defer s.listing.Invalidate()

	removed := 0
	for _, a := range list[limit:] {
		if err := s.fm.DeepDelete(a.Metadata.Key()); err != nil {
			log.Printf("Store: evict %s: %v", a.Metadata.Key(), err)
			continue
		}
		removed++
	}
	s.metrics.evicted(removed)
	log.Printf("Store: evicted %d artworks (capacity %d)", removed, limit)
	return removed, nil
}

// ReconcileOrphans deletes images without a sidecar and sidecars without an image,
// plus stale temp files, and returns how many files were removed.
func (s *ArtworkStore) ReconcileOrphans() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.listing.Invalidate()

	images, err := s.fm.ImageKeys()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", provider.ErrStorage, err)
	}
	sidecars, err := s.fm.MetadataKeys()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", provider.ErrStorage, err)
	}

	removed := 0
	for key, path := range images {
		if _, ok := sidecars[key]; !ok {
			if removeIfExists(path) == nil {
				removed++
			}
		}
	}
	for key, path := range sidecars {
		if _, ok := images[key]; !ok {
			if removeIfExists(path) == nil {
				removed++
			}
		}
	}
	removed += removeTempFiles(s.fm.imageDir) + removeTempFiles(s.fm.metaDir)

	if removed > 0 {
		log.Printf("Store: reconciled %d orphaned files", removed)
	}
	return removed, nil
}

// Stats reports count and total size of stored images.
func (s *ArtworkStore) Stats() (StoreStats, error) {
	list, err := s.listing.GetOrLoad()
	if err != nil {
		return StoreStats{}, err
	}
	stats := StoreStats{Count: len(list), Capacity: s.maxArtworks()}
	for _, a := range list {
		if info, err := os.Stat(a.Path); err == nil {
			stats.TotalBytes += info.Size()
		}
	}
	return stats, nil
}

// scan reads the directories. Pairs with an unreadable sidecar are skipped; they
// are left for ReconcileOrphans only when the sidecar is missing entirely.
func (s *ArtworkStore) scan() ([]provider.Artwork, error) {
	images, err := s.fm.ImageKeys()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrStorage, err)
	}

	list := make([]provider.Artwork, 0, len(images))
	for key, path := range images {
		meta, err := s.fm.ReadMetadata(key)
		if err != nil {
			continue
		}
		list = append(list, provider.Artwork{Path: path, Metadata: meta})
	}
	sortNewestFirst(list)
	return list, nil
}

func sortNewestFirst(list []provider.Artwork) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Metadata.FetchedAt != list[j].Metadata.FetchedAt {
			return list[i].Metadata.FetchedAt > list[j].Metadata.FetchedAt
		}
		return list[i].Metadata.Key() < list[j].Metadata.Key()
	})
}

func removeTempFiles(dir string) int {
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	removed := 0
	for _, m := range matches {
		if removeIfExists(m) == nil {
			removed++
		}
	}
	return removed
}
