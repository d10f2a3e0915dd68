package metmuseum

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coocood/freecache"
	"github.com/dixieflatline76/Easel/config"
	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/dixieflatline76/Easel/pkg/wallpaper"
	"github.com/dixieflatline76/Easel/util/log"
	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

// Source picks random public-domain artworks from the Met's open access API.
type Source struct {
	client      *http.Client
	baseURL     string
	ledger      provider.Ledger
	processor   provider.ImageProcessor
	cacheDir    string
	departments func() []int
	now         func() time.Time

	// Department id lists, keyed by department.
	idCache *freecache.Cache
}

func init() {
	wallpaper.RegisterSource(SourceName, func(deps wallpaper.SourceDeps) (provider.Source, error) {
		return NewSource(deps, APIBaseURL), nil
	})
}

// NewSource creates a Met source talking to baseURL.
func NewSource(deps wallpaper.SourceDeps, baseURL string) *Source {
	departments := func() []int { return config.DefaultDepartments }
	if deps.Settings != nil {
		departments = func() []int {
			if d := deps.Settings().Departments; len(d) > 0 {
				return d
			}
			return config.DefaultDepartments
		}
	}
	return &Source{
		client:      deps.Client,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		ledger:      deps.Ledger,
		processor:   deps.Processor,
		cacheDir:    deps.CacheDir,
		departments: departments,
		now:         time.Now,
		idCache:     freecache.NewCache(idCacheBytes),
	}
}

func (s *Source) Name() string {
	return SourceName
}

// FetchRandom selects, downloads and processes one artwork. Unusable picks are
// re-selected a bounded number of times.
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
		log.Debugf("MET: selection round %d/%d: %v", round, wallpaper.MaxReselections, err)
		lastErr = err
	}
	return provider.Artwork{}, fmt.Errorf("%w: no usable artwork after %d selections: %w",
		provider.ErrFetchFailed, wallpaper.MaxReselections, lastErr)
}

func (s *Source) fetchOnce(ctx context.Context) (provider.Artwork, error) {
	depts := s.departments()
	dept := depts[rand.IntN(len(depts))]

	ids, err := s.departmentIDs(ctx, dept)
	if err != nil {
		return provider.Artwork{}, err
	}
	if len(ids) == 0 {
		return provider.Artwork{}, fmt.Errorf("%w: department %d has no objects", provider.ErrNoCandidate, dept)
	}

	available := s.unseen(ids)
	if len(available) == 0 {
		n, err := s.ledger.ResetSource(SourceName)
		if err != nil {
			log.Printf("MET: resetting history: %v", err)
		}
		log.Printf("MET: every artwork of department %d has been shown, cleared %d history entries", dept, n)
		available = ids
	}

	obj, err := s.pickCandidate(ctx, sample(available, wallpaper.CandidateFanout))
	if err != nil {
		return provider.Artwork{}, err
	}

	key := provider.MakeKey(SourceName, strconv.Itoa(obj.ObjectID))
	raw, err := wallpaper.DownloadImage(ctx, s.client, obj.PrimaryImage, s.cacheDir, key, nil)
	if err != nil {
		return provider.Artwork{}, err
	}
	path, err := wallpaper.FinalizeDownload(ctx, s.processor, raw, s.cacheDir, key)
	if err != nil {
		return provider.Artwork{}, err
	}

	meta := obj.metadata(s.now())
	log.Printf("MET: fetched %q", meta.DisplayTitle())
	return provider.Artwork{Path: path, Metadata: meta}, nil
}

func (s *Source) unseen(ids []int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !s.ledger.IsKnown(provider.MakeKey(SourceName, strconv.Itoa(id))) {
			out = append(out, id)
		}
	}
	return out
}

// sample returns up to n distinct ids chosen uniformly at random.
func sample(ids []int, n int) []int {
	pool := append([]int(nil), ids...)
	n = min(n, len(pool))
	for i := 0; i < n; i++ {
		j := i + rand.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// departmentIDs returns the object ids of a department, cached for idListTTL.
func (s *Source) departmentIDs(ctx context.Context, dept int) ([]int, error) {
	cacheKey := []byte("dept:" + strconv.Itoa(dept))
	if cached, err := s.idCache.Get(cacheKey); err == nil {
		var ids []int
		if err := json.Unmarshal(cached, &ids); err == nil {
			return ids, nil
		}
	}

	url := fmt.Sprintf("%s/search?departmentId=%d&hasImages=true&isPublicDomain=true&q=*", s.baseURL, dept)
	var result struct {
		Total     int   `json:"total"`
		ObjectIDs []int `json:"objectIDs"`
	}
	if err := s.getJSON(ctx, url, &result); err != nil {
		return nil, fmt.Errorf("search department %d: %w", dept, err)
	}

	if len(result.ObjectIDs) > 0 {
		if encoded, err := json.Marshal(result.ObjectIDs); err == nil {
			if err := s.idCache.Set(cacheKey, encoded, int(idListTTL.Seconds())); err != nil {
				log.Debugf("MET: id list for department %d not cached: %v", dept, err)
			}
		}
	}
	log.Debugf("MET: department %d lists %d objects", dept, len(result.ObjectIDs))
	return result.ObjectIDs, nil
}

// pickCandidate fetches the candidates' details concurrently and returns the
// first one, in sampling order, that has a primary image.
func (s *Source) pickCandidate(ctx context.Context, ids []int) (*metObject, error) {
	objs := make([]*metObject, len(ids))
	errs := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(objectFetchers)
	for i, id := range ids {
		g.Go(func() error {
			obj, err := s.fetchObject(gctx, id)
			objs[i], errs[i] = obj, err
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, obj := range objs {
		if obj != nil && obj.PrimaryImage != "" {
			return obj, nil
		}
	}
	// Only transport failures everywhere are worth surfacing as such.
	if err := errors.Join(errs...); err != nil && countNil(errs) == 0 {
		return nil, err
	}
	return nil, fmt.Errorf("%w: none of %v has an image", provider.ErrNoCandidate, ids)
}

func countNil(errs []error) int {
	n := 0
	for _, err := range errs {
		if err == nil {
			n++
		}
	}
	return n
}

func (s *Source) fetchObject(ctx context.Context, id int) (*metObject, error) {
	var obj metObject
	if err := s.getJSON(ctx, fmt.Sprintf("%s/objects/%d", s.baseURL, id), &obj); err != nil {
		return nil, fmt.Errorf("object %d: %w", id, err)
	}
	return &obj, nil
}

func (s *Source) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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
		return fmt.Errorf("met api: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

type metObject struct {
	ObjectID          int    `json:"objectID"`
	Title             string `json:"title"`
	ArtistDisplayName string `json:"artistDisplayName"`
	ArtistDisplayBio  string `json:"artistDisplayBio"`
	ArtistNationality string `json:"artistNationality"`
	ObjectDate        string `json:"objectDate"`
	ObjectBeginDate   int    `json:"objectBeginDate"`
	PrimaryImage      string `json:"primaryImage"`
	Medium            string `json:"medium"`
	Dimensions        string `json:"dimensions"`
	Culture           string `json:"culture"`
	Period            string `json:"period"`
	Dynasty           string `json:"dynasty"`
	Reign             string `json:"reign"`
	Repository        string `json:"repository"`
	GalleryNumber     string `json:"GalleryNumber"`
}

func (o *metObject) metadata(fetched time.Time) provider.Metadata {
	title := strings.TrimSpace(o.Title)
	if title == "" {
		title = untitledArtwork
	}
	artist := strings.TrimSpace(o.ArtistDisplayName)
	if artist == "" {
		artist = UnknownArtist
	}
	return provider.Metadata{
		ID:          strconv.Itoa(o.ObjectID),
		Title:       title,
		Artist:      artist,
		Year:        o.year(),
		Description: o.description(),
		Source:      SourceName,
		ImageURL:    o.PrimaryImage,
		FetchedAt:   fetched.Unix(),
	}
}

func (o *metObject) year() string {
	if o.ObjectBeginDate > 0 {
		return strconv.Itoa(o.ObjectBeginDate)
	}
	return yearPattern.FindString(o.ObjectDate)
}

func (o *metObject) description() string {
	var lines []string
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value == "" {
			return
		}
		if label != "" {
			value = label + ": " + value
		}
		lines = append(lines, value)
	}

	add("", o.Medium)
	add("Dimensions", o.Dimensions)
	add("Culture", o.Culture)
	add("Period", o.Period)
	add("Dynasty", o.Dynasty)
	add("Reign", o.Reign)
	bio := strings.TrimSpace(o.ArtistDisplayBio)
	if nat := strings.TrimSpace(o.ArtistNationality); nat != "" {
		bio = strings.TrimSpace(bio + " (" + nat + ")")
	}
	add("Artist", bio)
	add("Gallery", o.GalleryNumber)
	add("Collection", o.Repository)
	return strings.Join(lines, "\n")
}
