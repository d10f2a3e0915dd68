package provider

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// Sentinel errors shared by the acquisition pipeline. Wrap them with fmt.Errorf("...: %w").
var (
	// ErrNetworkUnavailable means the connectivity probe failed. Scheduled updates treat it as a deferral.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrFetchFailed means a source could not deliver an artwork after its retries.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrNoCachedArtwork means the device is offline and the fetch cache is empty.
	ErrNoCachedArtwork = errors.New("no cached artwork")
	// ErrStorage wraps file system failures in the store, cache or ledger.
	ErrStorage = errors.New("storage error")
	// ErrStateCorrupt marks an unreadable persisted file that was replaced by defaults.
	ErrStateCorrupt = errors.New("state corrupt")
	// ErrNoCandidate is the retryable variant: the picked object was unusable and the
	// source should select another one.
	ErrNoCandidate = errors.New("no usable candidate")
)

// Metadata describes one artwork. Ids are unique only per Source; use Key for identity.
type Metadata struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist,omitempty"`
	Year        string `json:"year,omitempty"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
	ImageURL    string `json:"imageUrl"`
	FetchedAt   int64  `json:"fetchedAt"` // unix seconds
}

var keyUnsafe = regexp.MustCompile(`[^A-Za-z0-9-]+`)

// Key returns the identity of the artwork across sources.
func (m Metadata) Key() string {
	return MakeKey(m.Source, m.ID)
}

// MakeKey builds an identity key from a source name and a source-local id.
func MakeKey(source, id string) string {
	return keyUnsafe.ReplaceAllString(source, "") + "_" + keyUnsafe.ReplaceAllString(id, "-")
}

// DisplayTitle returns "Title, Artist (Year)" with missing parts omitted.
func (m Metadata) DisplayTitle() string {
	var b strings.Builder
	b.WriteString(m.Title)
	if m.Artist != "" {
		b.WriteString(", ")
		b.WriteString(m.Artist)
	}
	if m.Year != "" {
		b.WriteString(" (")
		b.WriteString(m.Year)
		b.WriteString(")")
	}
	return b.String()
}

// Artwork pairs a local image file with its metadata.
type Artwork struct {
	Path     string   `json:"path"`
	Metadata Metadata `json:"metadata"`
}

// Source fetches a single fresh artwork from a remote catalog. The returned path
// points to a processed image inside the fetch cache.
type Source interface {
	Name() string
	FetchRandom(ctx context.Context) (Artwork, error)
}

// ImageProcessor turns a raw download into a wallpaper-ready image and returns its path.
type ImageProcessor interface {
	Process(ctx context.Context, rawPath string) (string, error)
}

// WallpaperSetter applies an image file as the desktop wallpaper.
type WallpaperSetter interface {
	SetWallpaper(path string) error
}

// Ledger is the view of the history ledger that sources use to avoid repeats.
type Ledger interface {
	IsKnown(key string) bool
	MostRecent(n int) []Metadata
	ResetSource(source string) (int, error)
}
