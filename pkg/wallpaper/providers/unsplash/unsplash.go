package unsplash

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dixieflatline76/Easel/config"
	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/dixieflatline76/Easel/pkg/wallpaper"
	"github.com/dixieflatline76/Easel/util/log"
	json "github.com/goccy/go-json"
)

// ErrMissingAccessKey means no Unsplash access key is configured.
var ErrMissingAccessKey = errors.New("unsplash access key is not configured")

// KeyFunc returns the Unsplash access key.
type KeyFunc func() (string, error)

// KeyringAccessKey reads the access key from the environment or the OS keyring.
func KeyringAccessKey() (string, error) {
	key, err := config.GetSecret(config.UnsplashKeyName, config.UnsplashKeyEnv)
	if errors.Is(err, config.ErrSecretNotFound) {
		return "", ErrMissingAccessKey
	}
	return key, err
}

// Source picks random art photos from Unsplash.
type Source struct {
	client    *http.Client
	baseURL   string
	ledger    provider.Ledger
	processor provider.ImageProcessor
	cacheDir  string
	accessKey KeyFunc
	now       func() time.Time
}

func init() {
	wallpaper.RegisterSource(SourceName, func(deps wallpaper.SourceDeps) (provider.Source, error) {
		return NewSource(deps, APIBaseURL, KeyringAccessKey), nil
	})
}

// NewSource creates an Unsplash source talking to baseURL.
func NewSource(deps wallpaper.SourceDeps, baseURL string, accessKey KeyFunc) *Source {
	return &Source{
		client:    deps.Client,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		ledger:    deps.Ledger,
		processor: deps.Processor,
		cacheDir:  deps.CacheDir,
		accessKey: accessKey,
		now:       time.Now,
	}
}

func (s *Source) Name() string {
	return SourceName
}

// FetchRandom asks Unsplash for a random art photo that has not been shown recently.
func (s *Source) FetchRandom(ctx context.Context) (provider.Artwork, error) {
	key, err := s.accessKey()
	if err != nil {
		return provider.Artwork{}, fmt.Errorf("%w: %w", provider.ErrFetchFailed, err)
	}

	var lastErr error
	for round := 1; round <= wallpaper.MaxReselections; round++ {
		art, err := s.fetchOnce(ctx, key)
		if err == nil {
			return art, nil
		}
		if !errors.Is(err, provider.ErrNoCandidate) {
			return provider.Artwork{}, err
		}
		log.Debugf("Unsplash: selection round %d/%d: %v", round, wallpaper.MaxReselections, err)
		lastErr = err
	}
	return provider.Artwork{}, fmt.Errorf("%w: no usable photo after %d selections: %w",
		provider.ErrFetchFailed, wallpaper.MaxReselections, lastErr)
}

func (s *Source) fetchOnce(ctx context.Context, accessKey string) (provider.Artwork, error) {
	photo, err := s.randomPhoto(ctx, accessKey)
	if err != nil {
		return provider.Artwork{}, err
	}
	if photo.ID == "" || photo.URLs.Full == "" {
		return provider.Artwork{}, fmt.Errorf("%w: photo without id or image url", provider.ErrNoCandidate)
	}

	key := provider.MakeKey(SourceName, photo.ID)
	if s.ledger.IsKnown(key) {
		return provider.Artwork{}, fmt.Errorf("%w: %s was shown recently", provider.ErrNoCandidate, key)
	}

	raw, err := wallpaper.DownloadImage(ctx, s.client, photo.URLs.Full, s.cacheDir, key, nil)
	if err != nil {
		return provider.Artwork{}, err
	}
	path, err := wallpaper.FinalizeDownload(ctx, s.processor, raw, s.cacheDir, key)
	if err != nil {
		return provider.Artwork{}, err
	}
	s.trackDownload(ctx, accessKey, photo.Links.DownloadLocation)

	meta := photo.metadata(s.now())
	log.Printf("Unsplash: fetched %q", meta.DisplayTitle())
	return provider.Artwork{Path: path, Metadata: meta}, nil
}

func (s *Source) randomPhoto(ctx context.Context, accessKey string) (*Photo, error) {
	q := url.Values{}
	q.Set("query", SearchQuery)
	q.Set("orientation", "landscape")
	q.Set("content_filter", "high")
	if exclude := s.recentIDs(); len(exclude) > 0 {
		q.Set("exclude", strings.Join(exclude, ","))
	}

	resp, err := s.get(ctx, s.baseURL+"/photos/random?"+q.Encode(), accessKey)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("unsplash rejected the access key: %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unsplash api returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var photo Photo
	if err := json.NewDecoder(resp.Body).Decode(&photo); err != nil {
		return nil, fmt.Errorf("decoding random photo: %w", err)
	}
	return &photo, nil
}

// recentIDs returns the Unsplash ids among the most recently shown artworks.
func (s *Source) recentIDs() []string {
	var ids []string
	for _, m := range s.ledger.MostRecent(recentExclusions) {
		if m.Source == SourceName {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// trackDownload reports the download to Unsplash as its API guidelines require.
// Failures only get logged.
func (s *Source) trackDownload(ctx context.Context, accessKey, location string) {
	if location == "" {
		return
	}
	resp, err := s.get(ctx, location, accessKey)
	if err != nil {
		log.Debugf("Unsplash: download tracking failed: %v", err)
		return
	}
	resp.Body.Close()
}

func (s *Source) get(ctx context.Context, rawURL, accessKey string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Client-ID "+accessKey)
	req.Header.Set("Accept-Version", "v1")
	return s.client.Do(req)
}

// Unsplash JSON structures

type Photo struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	AltDescription string `json:"alt_description"`
	CreatedAt      string `json:"created_at"`
	URLs           URLs   `json:"urls"`
	Links          Links  `json:"links"`
	User           User   `json:"user"`
}

type URLs struct {
	Raw     string `json:"raw"`
	Full    string `json:"full"`
	Regular string `json:"regular"`
}

type Links struct {
	HTML             string `json:"html"`
	DownloadLocation string `json:"download_location"`
}

type User struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

func (p *Photo) metadata(fetched time.Time) provider.Metadata {
	title := strings.TrimSpace(p.Description)
	if title == "" {
		title = strings.TrimSpace(p.AltDescription)
	}
	if title == "" {
		title = untitledPhoto
	}
	var year string
	if t, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
		year = t.Format("2006")
	}
	return provider.Metadata{
		ID:          p.ID,
		Title:       title,
		Artist:      p.User.Name,
		Year:        year,
		Description: fmt.Sprintf("Photo by %s on Unsplash", p.User.Name),
		Source:      SourceName,
		ImageURL:    p.URLs.Full,
		FetchedAt:   fetched.Unix(),
	}
}
