package artic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/dixieflatline76/Easel/pkg/wallpaper"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAIC serves a search listing, artwork details and IIIF images.
type fakeAIC struct {
	t        *testing.T
	listing  map[int]thumbnail
	artworks map[int]artwork

	searches atomic.Int32
	mu       sync.Mutex
	fetched  []int
}

func (f *fakeAIC) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/artworks/search", func(w http.ResponseWriter, r *http.Request) {
		f.searches.Add(1)
		assert.Equal(f.t, "true", r.URL.Query().Get("query[term][is_public_domain]"))
		assert.NotEmpty(f.t, r.URL.Query().Get("q"))

		type item struct {
			ID        int       `json:"id"`
			Thumbnail thumbnail `json:"thumbnail"`
		}
		var data []item
		for id, th := range f.listing {
			data = append(data, item{ID: id, Thumbnail: th})
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	})
	mux.HandleFunc("/artworks/", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/artworks/"))
		require.NoError(f.t, err)
		f.mu.Lock()
		f.fetched = append(f.fetched, id)
		f.mu.Unlock()

		art, ok := f.artworks[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data":   toJSON(art),
			"config": map[string]string{"iiif_url": "http://" + r.Host + "/iiif/2"},
		})
	})
	mux.HandleFunc("/iiif/2/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "https://www.artic.edu/", r.Header.Get("Referer"))
		assert.True(f.t, strings.HasSuffix(r.URL.Path, "/full/!4096,4096/0/default.jpg"), r.URL.Path)
		w.Write([]byte("jpeg bytes"))
	})
	return mux
}

func toJSON(a artwork) map[string]any {
	return map[string]any{
		"id":              a.ID,
		"title":           a.Title,
		"artist_title":    a.ArtistTitle,
		"artist_display":  a.ArtistDisplay,
		"date_display":    a.DateDisplay,
		"date_start":      a.DateStart,
		"image_id":        a.ImageID,
		"thumbnail":       a.Thumbnail,
		"medium_display":  a.Medium,
		"dimensions":      a.Dimensions,
		"place_of_origin": a.PlaceOfOrigin,
		"credit_line":     a.CreditLine,
	}
}

type copyProcessor struct{}

func (copyProcessor) Process(_ context.Context, rawPath string) (string, error) {
	data, err := os.ReadFile(rawPath)
	if err != nil {
		return "", err
	}
	out := rawPath + ".processed.jpg"
	return out, os.WriteFile(out, data, 0644)
}

func newTestSource(t *testing.T, f *fakeAIC) (*Source, *wallpaper.HistoryLedger, string) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	root := t.TempDir()
	ledger := wallpaper.NewHistoryLedger(filepath.Join(root, "history.json"), 100)
	cacheDir := filepath.Join(root, "cache")
	src := NewSource(wallpaper.SourceDeps{
		Client:    srv.Client(),
		Ledger:    ledger,
		Processor: copyProcessor{},
		CacheDir:  cacheDir,
	}, srv.URL, 0)
	return src, ledger, cacheDir
}

var (
	wide     = thumbnail{Width: 2000, Height: 1200}
	portrait = thumbnail{Width: 1000, Height: 1500}
)

func grandeJatte() artwork {
	return artwork{
		ID:            27992,
		Title:         "A Sunday on La Grande Jatte, 1884",
		ArtistDisplay: "Georges Seurat\nFrench, 1859-1891",
		DateDisplay:   "1884–86",
		DateStart:     1884,
		ImageID:       "2d484387-2509-5e8e-2c43-22f9981972eb",
		Thumbnail:     wide,
		Medium:        "Oil on canvas",
		Dimensions:    "207.5 × 308.1 cm",
		PlaceOfOrigin: "France",
		CreditLine:    "Helen Birch Bartlett Memorial Collection",
	}
}

func TestSource_FetchRandom(t *testing.T) {
	f := &fakeAIC{t: t,
		listing:  map[int]thumbnail{27992: wide, 5: portrait},
		artworks: map[int]artwork{27992: grandeJatte()},
	}
	src, _, cacheDir := newTestSource(t, f)

	art, err := src.FetchRandom(context.Background())
	require.NoError(t, err)

	m := art.Metadata
	assert.Equal(t, "ArtInstituteChicago_27992", m.Key())
	assert.Equal(t, "Georges Seurat", m.Artist)
	assert.Equal(t, "1884", m.Year)
	assert.Equal(t, "Oil on canvas\nDimensions: 207.5 × 308.1 cm\nOrigin: France\nDate: 1884–86\n"+
		"Helen Birch Bartlett Memorial Collection\nArt Institute of Chicago", m.Description)
	assert.Contains(t, m.ImageURL, "/iiif/2/2d484387-2509-5e8e-2c43-22f9981972eb/full/")
	assert.Equal(t, filepath.Join(cacheDir, "ArtInstituteChicago_27992"+wallpaper.ImageExt), art.Path)
	assert.FileExists(t, art.Path)

	f.mu.Lock()
	assert.Equal(t, []int{27992}, f.fetched, "portrait listings are never fetched")
	f.mu.Unlock()
}

func TestSource_SkipsShownArtworks(t *testing.T) {
	second := grandeJatte()
	second.ID, second.Title = 28560, "The Bedroom"
	f := &fakeAIC{t: t,
		listing:  map[int]thumbnail{27992: wide, 28560: wide},
		artworks: map[int]artwork{27992: grandeJatte(), 28560: second},
	}
	src, ledger, _ := newTestSource(t, f)
	src.topics = []string{"landscape"}
	require.NoError(t, ledger.RecordShown(provider.Metadata{ID: "27992", Source: SourceName}))

	for range 3 {
		art, err := src.FetchRandom(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "28560", art.Metadata.ID)
	}
	assert.Equal(t, int32(1), f.searches.Load(), "search results are cached per topic")
}

func TestSource_ExhaustedTopicResetsItsHistory(t *testing.T) {
	f := &fakeAIC{t: t,
		listing:  map[int]thumbnail{27992: wide},
		artworks: map[int]artwork{27992: grandeJatte()},
	}
	src, ledger, _ := newTestSource(t, f)
	src.topics = []string{"impressionism"}
	require.NoError(t, ledger.RecordShown(provider.Metadata{ID: "27992", Source: SourceName}))
	require.NoError(t, ledger.RecordShown(provider.Metadata{ID: "1", Source: "MetMuseum"}))

	art, err := src.FetchRandom(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "27992", art.Metadata.ID)
	assert.Equal(t, 1, ledger.Len())
	assert.True(t, ledger.IsKnown("MetMuseum_1"))
}

func TestSource_GivesUpWithoutImages(t *testing.T) {
	noImage := grandeJatte()
	noImage.ImageID = ""
	f := &fakeAIC{t: t,
		listing:  map[int]thumbnail{27992: wide},
		artworks: map[int]artwork{27992: noImage},
	}
	src, _, _ := newTestSource(t, f)

	_, err := src.FetchRandom(context.Background())
	assert.ErrorIs(t, err, provider.ErrFetchFailed)
	assert.ErrorIs(t, err, provider.ErrNoCandidate)
}

func TestSerializedTransport(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := serializedClient(srv.Client(), time.Millisecond)
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(srv.URL)
			if assert.NoError(t, err) {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

func TestSerializedTransport_CancelWhileWaiting(t *testing.T) {
	client := serializedClient(http.DefaultClient, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://127.0.0.1:1", nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIIIFURL(t *testing.T) {
	got := iiifURL(DefaultIIIFURL+"/", "e9667990-97ee-173f-29f9-55d9aff5d918", 1920, 1080)
	assert.Equal(t, "https://www.artic.edu/iiif/2/e9667990-97ee-173f-29f9-55d9aff5d918/full/!1920,1080/0/default.jpg", got)
}

func TestArtworkArtist(t *testing.T) {
	assert.Equal(t, "Claude Monet", (&artwork{ArtistTitle: "Claude Monet", ArtistDisplay: "ignored"}).artist())
	assert.Equal(t, "Mary Cassatt", (&artwork{ArtistDisplay: "Mary Cassatt\nAmerican"}).artist())
	assert.Equal(t, UnknownArtist, (&artwork{}).artist())
	assert.Equal(t, "1890", (&artwork{DateDisplay: "c. 1890"}).year())
}

func TestIsLandscape(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		want   bool
	}{
		{"Perfect Landscape 16:9", 1920, 1080, true},
		{"Square", 1000, 1000, false},
		{"Portrait", 1000, 1500, false},
		{"Near Square (1.05)", 1050, 1000, false},
		{"Edge Case Landscape (1.1)", 1100, 1000, true},
		{"Zero Dims", 0, 0, false},
		{"Negative Dims", -1, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLandscape(tt.width, tt.height))
		})
	}
}
