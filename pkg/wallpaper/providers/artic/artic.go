package artic

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coocood/freecache"
	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/dixieflatline76/Easel/pkg/wallpaper"
	"github.com/dixieflatline76/Easel/util/log"
	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

// Source picks random public-domain landscape artworks from the Art Institute of
// Chicago API.
type Source struct {
	client    *http.Client
	baseURL   string
	ledger    provider.Ledger
	processor provider.ImageProcessor
	cacheDir  string
	topics    []string
	now       func() time.Time

	// Landscape artwork ids per search topic.
	idCache *freecache.Cache
}

func init() {
	wallpaper.RegisterSource(SourceName, func(deps wallpaper.SourceDeps) (provider.Source, error) {
		return NewSource(deps, APIBaseURL, PoliteDelay), nil
	})
}

// NewSource creates an AIC source talking to baseURL. Requests are serialized and
// spaced by delay.
func NewSource(deps wallpaper.SourceDeps, baseURL string, delay time.Duration) *Source {
	return &Source{
		client:    serializedClient(deps.Client, delay),
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		ledger:    deps.Ledger,
		processor: deps.Processor,
		cacheDir:  deps.CacheDir,
		topics:    Topics,
		now:       time.Now,
		idCache:   freecache.NewCache(idCacheBytes),
	}
}

func (s *Source) Name() string {
	return SourceName
}

// FetchRandom selects, downloads and processes one artwork, re-selecting a
// bounded number of times.
func (s *Source) FetchRandom(ctx context.Context) (provider.Artwork, error) {
	var lastErr error
	for round := 1; round <= wallpaper.MaxReselections; round++ {
		art, err := s.fetchOnce(ctx)
		if err == nil {
			return art, nil
		}
		if !errors.Is(err, provider.ErrNoCandidate) {
			return provider.Artwork{}, err
		}
		log.Debugf("AIC: selection round %d/%d: %v", round, wallpaper.MaxReselections, err)
		lastErr = err
	}
	return provider.Artwork{}, fmt.Errorf("%w: no usable artwork after %d selections: %w",
		provider.ErrFetchFailed, wallpaper.MaxReselections, lastErr)
}

func (s *Source) fetchOnce(ctx context.Context) (provider.Artwork, error) {
	topic := s.topics[rand.IntN(len(s.topics))]
	ids, err := s.topicIDs(ctx, topic)
	if err != nil {
		return provider.Artwork{}, err
	}
	if len(ids) == 0 {
		return provider.Artwork{}, fmt.Errorf("%w: no landscape artworks for %q", provider.ErrNoCandidate, topic)
	}

	var available []int
	for _, id := range ids {
		if !s.ledger.IsKnown(provider.MakeKey(SourceName, strconv.Itoa(id))) {
			available = append(available, id)
		}
	}
	if len(available) == 0 {
		n, err := s.ledger.ResetSource(SourceName)
		if err != nil {
			log.Printf("AIC: resetting history: %v", err)
		}
		log.Printf("AIC: every %q artwork has been shown, cleared %d history entries", topic, n)
		available = ids
	}

	rand.Shuffle(len(available), func(i, j int) { available[i], available[j] = available[j], available[i] })
	art, err := s.firstWithImage(ctx, available[:min(len(available), wallpaper.CandidateFanout)])
	if err != nil {
		return provider.Artwork{}, err
	}

	key := provider.MakeKey(SourceName, strconv.Itoa(art.ID))
	imageURL := art.imageURL()
	raw, err := wallpaper.DownloadImage(ctx, s.client, imageURL, s.cacheDir, key, downloadHeaders)
	if err != nil {
		return provider.Artwork{}, err
	}
	path, err := wallpaper.FinalizeDownload(ctx, s.processor, raw, s.cacheDir, key)
	if err != nil {
		return provider.Artwork{}, err
	}

	meta := art.metadata(imageURL, s.now())
	log.Printf("AIC: fetched %q", meta.DisplayTitle())
	return provider.Artwork{Path: path, Metadata: meta}, nil
}

var downloadHeaders = map[string]string{
	"Accept":  "image/avif,image/webp,image/*,*/*;q=0.8",
	"Referer": "https://www.artic.edu/",
}

// topicIDs searches public-domain artworks for topic and keeps the landscape ones.
func (s *Source) topicIDs(ctx context.Context, topic string) ([]int, error) {
	cacheKey := []byte("topic:" + topic)
	if cached, err := s.idCache.Get(cacheKey); err == nil {
		var ids []int
		if err := json.Unmarshal(cached, &ids); err == nil {
			return ids, nil
		}
	}

	q := url.Values{}
	q.Set("q", topic)
	q.Set("query[term][is_public_domain]", "true")
	q.Set("fields", "id,thumbnail")
	q.Set("limit", strconv.Itoa(searchLimit))

	var result struct {
		Data []struct {
			ID        int       `json:"id"`
			Thumbnail thumbnail `json:"thumbnail"`
		} `json:"data"`
	}
	if err := s.getJSON(ctx, s.baseURL+"/artworks/search?"+q.Encode(), &result); err != nil {
		return nil, fmt.Errorf("search %q: %w", topic, err)
	}

	var ids []int
	for _, item := range result.Data {
		if isLandscape(item.Thumbnail.Width, item.Thumbnail.Height) {
			ids = append(ids, item.ID)
		}
	}
	if len(ids) > 0 {
		if encoded, err := json.Marshal(ids); err == nil {
			if err := s.idCache.Set(cacheKey, encoded, int(idListTTL.Seconds())); err != nil {
				log.Debugf("AIC: id list for %q not cached: %v", topic, err)
			}
		}
	}
	return ids, nil
}

// firstWithImage fetches the candidates' details concurrently and returns the first
// one, in candidate order, with an image.
func (s *Source) firstWithImage(ctx context.Context, ids []int) (*artwork, error) {
	found := make([]*artwork, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			found[i], errs[i] = s.fetchArtwork(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for i, art := range found {
		if errs[i] != nil {
			failed++
			continue
		}
		if art.ImageID != "" && isLandscape(art.Thumbnail.Width, art.Thumbnail.Height) {
			return art, nil
		}
	}
	if failed == len(ids) {
		return nil, errors.Join(errs...)
	}
	return nil, fmt.Errorf("%w: none of %v has a landscape image", provider.ErrNoCandidate, ids)
}

func (s *Source) fetchArtwork(ctx context.Context, id int) (*artwork, error) {
	var result struct {
		Data   artwork `json:"data"`
		Config struct {
			IIIFURL string `json:"iiif_url"`
		} `json:"config"`
	}
	u := fmt.Sprintf("%s/artworks/%d?fields=%s", s.baseURL, id, detailFields)
	if err := s.getJSON(ctx, u, &result); err != nil {
		return nil, fmt.Errorf("artwork %d: %w", id, err)
	}
	art := result.Data
	art.iiifBase = result.Config.IIIFURL
	return &art, nil
}

func (s *Source) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", provider.ErrNoCandidate, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("aic api: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

type thumbnail struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type artwork struct {
	ID            int       `json:"id"`
	Title         string    `json:"title"`
	ArtistTitle   string    `json:"artist_title"`
	ArtistDisplay string    `json:"artist_display"`
	DateDisplay   string    `json:"date_display"`
	DateStart     int       `json:"date_start"`
	ImageID       string    `json:"image_id"`
	Thumbnail     thumbnail `json:"thumbnail"`
	Medium        string    `json:"medium_display"`
	Dimensions    string    `json:"dimensions"`
	PlaceOfOrigin string    `json:"place_of_origin"`
	CreditLine    string    `json:"credit_line"`

	iiifBase string
}

func (a *artwork) imageURL() string {
	base := a.iiifBase
	if base == "" {
		base = DefaultIIIFURL
	}
	return iiifURL(base, a.ImageID, iiifMaxEdge, iiifMaxEdge)
}

func (a *artwork) metadata(imageURL string, fetched time.Time) provider.Metadata {
	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = untitledArtwork
	}
	return provider.Metadata{
		ID:          strconv.Itoa(a.ID),
		Title:       title,
		Artist:      a.artist(),
		Year:        a.year(),
		Description: a.description(),
		Source:      SourceName,
		ImageURL:    imageURL,
		FetchedAt:   fetched.Unix(),
	}
}

// artist prefers the canonical artist name over the first line of the display text.
func (a *artwork) artist() string {
	if name := strings.TrimSpace(a.ArtistTitle); name != "" {
		return name
	}
	if first, _, _ := strings.Cut(a.ArtistDisplay, "\n"); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	return UnknownArtist
}

func (a *artwork) year() string {
	if a.DateStart > 0 {
		return strconv.Itoa(a.DateStart)
	}
	return yearPattern.FindString(a.DateDisplay)
}

func (a *artwork) description() string {
	var lines []string
	for _, field := range [][2]string{
		{"", a.Medium},
		{"Dimensions", a.Dimensions},
		{"Origin", a.PlaceOfOrigin},
		{"Date", a.DateDisplay},
		{"", a.CreditLine},
	} {
		value := strings.TrimSpace(field[1])
		if value == "" {
			continue
		}
		if field[0] != "" {
			value = field[0] + ": " + value
		}
		lines = append(lines, value)
	}
	lines = append(lines, "Art Institute of Chicago")
	return strings.Join(lines, "\n")
}

func isLandscape(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	ratio := float64(width) / float64(height)
	return ratio >= 1.1
}

// iiifURL builds an IIIF Image API url fitting the image within width x height.
func iiifURL(base, imageID string, width, height int) string {
	return fmt.Sprintf("%s/%s/full/!%d,%d/0/default.jpg", strings.TrimSuffix(base, "/"), imageID, width, height)
}
