package wallpaper

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOS is a mock implementation of the OS interface.
type MockOS struct {
	mock.Mock
}

func (m *MockOS) DesktopDimension() (int, int, error) {
	args := m.Called()
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *MockOS) SetWallpaper(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

// MockSource is a mock implementation of provider.Source.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Name() string {
	return "MockSource"
}

func (m *MockSource) FetchRandom(ctx context.Context) (provider.Artwork, error) {
	args := m.Called(ctx)
	return args.Get(0).(provider.Artwork), args.Error(1)
}

// fileSource produces real image files in dir with increasing ids, failing the
// first failures calls.
type fileSource struct {
	t        *testing.T
	dir      string
	failures int

	mu    sync.Mutex
	calls int
	err   error
}

func (s *fileSource) Name() string { return "MetMuseum" }

func (s *fileSource) FetchRandom(ctx context.Context) (provider.Artwork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		if s.err != nil {
			return provider.Artwork{}, s.err
		}
		return provider.Artwork{}, provider.ErrNoCandidate
	}
	meta := provider.Metadata{
		ID:        strconv.Itoa(s.calls),
		Title:     "Artwork " + strconv.Itoa(s.calls),
		Source:    "MetMuseum",
		FetchedAt: int64(1000 + s.calls),
	}
	path := filepath.Join(s.dir, meta.Key()+ImageExt)
	require.NoError(s.t, os.MkdirAll(s.dir, 0755))
	require.NoError(s.t, os.WriteFile(path, []byte("jpeg "+meta.ID), 0644))
	return provider.Artwork{Path: path, Metadata: meta}, nil
}

func (s *fileSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func staticResolver(src provider.Source) SourceResolver {
	return func() (provider.Source, error) { return src, nil }
}

func onlineProbe() Probe {
	return ProbeFunc(func(context.Context) bool { return true })
}

func offlineProbe() Probe {
	return ProbeFunc(func(context.Context) bool { return false })
}

var noBackoff = WithBackoff(func(int) time.Duration { return 0 })
