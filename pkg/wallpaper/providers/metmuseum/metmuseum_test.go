package metmuseum

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/dixieflatline76/Easel/config"
	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/dixieflatline76/Easel/pkg/wallpaper"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMet serves a minimal collection API: one department and a set of objects.
type fakeMet struct {
	t            *testing.T
	ids          []int
	objects      map[int]metObject // PrimaryImage "images" is served by the fake
	brokenImages map[int]bool

	searches atomic.Int32
	mu       sync.Mutex
	fetched  []int
}

func (f *fakeMet) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		f.searches.Add(1)
		assert.Equal(f.t, "true", r.URL.Query().Get("hasImages"))
		assert.Equal(f.t, "true", r.URL.Query().Get("isPublicDomain"))
		json.NewEncoder(w).Encode(map[string]any{"total": len(f.ids), "objectIDs": f.ids})
	})
	mux.HandleFunc("/objects/", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/objects/"))
		require.NoError(f.t, err)
		f.mu.Lock()
		f.fetched = append(f.fetched, id)
		f.mu.Unlock()
		obj, ok := f.objects[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if obj.PrimaryImage == "images" {
			obj.PrimaryImage = fmt.Sprintf("http://%s/images/%d.png", r.Host, id)
		}
		json.NewEncoder(w).Encode(obj)
	})
	mux.HandleFunc("/images/", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/images/"), ".png"))
		if f.brokenImages[id] {
			http.NotFound(w, r)
			return
		}
		var buf bytes.Buffer
		require.NoError(f.t, imaging.Encode(&buf, imaging.New(8, 4, color.White), imaging.PNG))
		w.Write(buf.Bytes())
	})
	return mux
}

func (f *fakeMet) Fetched() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
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

func newTestSource(t *testing.T, f *fakeMet) (*Source, *wallpaper.HistoryLedger, string) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	root := t.TempDir()
	ledger := wallpaper.NewHistoryLedger(filepath.Join(root, "history.json"), 100)
	cacheDir := filepath.Join(root, "cache")
	settings := config.DefaultSettings()
	settings.Departments = []int{DeptEuropeanPaintings}

	src := NewSource(wallpaper.SourceDeps{
		Client:    srv.Client(),
		Ledger:    ledger,
		Processor: copyProcessor{},
		CacheDir:  cacheDir,
		Settings:  func() config.Settings { return settings },
	}, srv.URL)
	return src, ledger, cacheDir
}

func TestSource_FetchRandom(t *testing.T) {
	f := &fakeMet{t: t, ids: []int{1, 2}, objects: map[int]metObject{
		1: {ObjectID: 1, Title: "No Image"},
		2: {
			ObjectID:          2,
			Title:             "Wheat Field with Cypresses",
			ObjectDate:        "ca. 1889–90",
			PrimaryImage:      "images",
			Medium:            "Oil on canvas",
			Dimensions:        "28 7/8 × 36 3/4 in.",
			ArtistDisplayBio:  "Dutch, 1853–1890",
			ArtistNationality: "Dutch",
			Repository:        "Metropolitan Museum of Art, New York, NY",
		},
	}}
	src, _, cacheDir := newTestSource(t, f)

	art, err := src.FetchRandom(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "MetMuseum_2", art.Metadata.Key())
	assert.Equal(t, UnknownArtist, art.Metadata.Artist)
	assert.Equal(t, "1889", art.Metadata.Year)
	assert.Equal(t, SourceName, art.Metadata.Source)
	assert.NotZero(t, art.Metadata.FetchedAt)
	assert.True(t, strings.HasPrefix(art.Metadata.Description, "Oil on canvas\nDimensions: "))
	assert.Contains(t, art.Metadata.Description, "Artist: Dutch, 1853–1890 (Dutch)")
	assert.Contains(t, art.Metadata.Description, "Collection: Metropolitan Museum of Art")

	assert.Equal(t, filepath.Join(cacheDir, "MetMuseum_2"+wallpaper.ImageExt), art.Path)
	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "raw and intermediate files are removed")
}

func TestSource_SkipsShownArtworks(t *testing.T) {
	f := &fakeMet{t: t, ids: []int{1, 2, 3}, objects: map[int]metObject{
		1: {ObjectID: 1, Title: "One", PrimaryImage: "images", ObjectBeginDate: 1500},
		2: {ObjectID: 2, Title: "Two", PrimaryImage: "images"},
		3: {ObjectID: 3, Title: "Three", PrimaryImage: "images"},
	}}
	src, ledger, _ := newTestSource(t, f)
	require.NoError(t, ledger.RecordShown(provider.Metadata{ID: "2", Source: SourceName}))
	require.NoError(t, ledger.RecordShown(provider.Metadata{ID: "3", Source: SourceName}))

	for range 5 {
		art, err := src.FetchRandom(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "MetMuseum_1", art.Metadata.Key())
		assert.Equal(t, "1500", art.Metadata.Year)
	}
	assert.Equal(t, int32(1), f.searches.Load(), "department id list is cached")
}

func TestSource_ExhaustedCatalogResetsOnlyItsHistory(t *testing.T) {
	f := &fakeMet{t: t, ids: []int{1}, objects: map[int]metObject{
		1: {ObjectID: 1, Title: "Only", PrimaryImage: "images"},
	}}
	src, ledger, _ := newTestSource(t, f)
	require.NoError(t, ledger.RecordShown(provider.Metadata{ID: "1", Source: SourceName}))
	require.NoError(t, ledger.RecordShown(provider.Metadata{ID: "abc", Source: "Unsplash"}))

	art, err := src.FetchRandom(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MetMuseum_1", art.Metadata.Key())

	assert.False(t, ledger.IsKnown("MetMuseum_1"))
	assert.True(t, ledger.IsKnown("Unsplash_abc"))
}

func TestSource_GivesUpAfterBoundedReselection(t *testing.T) {
	f := &fakeMet{t: t, ids: []int{1, 2}, objects: map[int]metObject{
		1: {ObjectID: 1, Title: "No Image"},
		2: {ObjectID: 2, Title: "Broken", PrimaryImage: "images"},
	}, brokenImages: map[int]bool{2: true}}
	src, _, _ := newTestSource(t, f)

	_, err := src.FetchRandom(context.Background())
	assert.ErrorIs(t, err, provider.ErrFetchFailed)
	assert.ErrorIs(t, err, provider.ErrNoCandidate)
	assert.Equal(t, 2*wallpaper.MaxReselections, f.Fetched(), "two candidates per round")
}

func TestSource_TransportErrorIsNotReselected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewSource(wallpaper.SourceDeps{
		Client: srv.Client(),
		Ledger: wallpaper.NewHistoryLedger(filepath.Join(t.TempDir(), "history.json"), 10),
	}, srv.URL)

	_, err := src.FetchRandom(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, provider.ErrNoCandidate)
}

func TestSample(t *testing.T) {
	ids := []int{1, 2, 3, 4, 5}
	got := sample(ids, 3)
	assert.Len(t, got, 3)
	seen := map[int]bool{}
	for _, id := range got {
		assert.Contains(t, ids, id)
		assert.False(t, seen[id], "sample is without replacement")
		seen[id] = true
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids, "input untouched")
	assert.Len(t, sample([]int{7}, 3), 1)
}

func TestMetObjectYear(t *testing.T) {
	assert.Equal(t, "1665", (&metObject{ObjectBeginDate: 1665, ObjectDate: "1700"}).year())
	assert.Equal(t, "1830", (&metObject{ObjectDate: "ca. 1830–32"}).year())
	assert.Equal(t, "", (&metObject{ObjectDate: "19th century"}).year())
}
