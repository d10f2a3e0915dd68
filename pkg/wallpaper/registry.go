package wallpaper

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/dixieflatline76/Easel/config"
	"github.com/dixieflatline76/Easel/pkg/provider"
)

// SourceDeps carries what a Source needs from the host.
type SourceDeps struct {
	Client    *http.Client
	Ledger    provider.Ledger
	Processor provider.ImageProcessor
	CacheDir  string
	Settings  func() config.Settings
}

// SourceFactory defines the function signature for creating a source.
type SourceFactory func(deps SourceDeps) (provider.Source, error)

var (
	registryMu     sync.RWMutex
	sourceRegistry = make(map[string]SourceFactory)
)

// RegisterSource registers a source factory under name. Sources call it from init.
func RegisterSource(name string, factory SourceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	sourceRegistry[name] = factory
}

// RegisteredSources returns the sorted names of all registered sources.
func RegisteredSources() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(sourceRegistry))
	for name := range sourceRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewSource builds the registered source called name.
func NewSource(name string, deps SourceDeps) (provider.Source, error) {
	registryMu.RLock()
	factory, ok := sourceRegistry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown artwork source %q (registered: %v)", name, RegisteredSources())
	}
	return factory(deps)
}

// SelectedSource resolves the source named by the current settings. Sources are
// built once per name and reused, so their caches outlive a single fetch.
func SelectedSource(deps SourceDeps) SourceResolver {
	var (
		mu    sync.Mutex
		built = make(map[string]provider.Source)
	)
	return func() (provider.Source, error) {
		name := config.DefaultSource
		if deps.Settings != nil {
			name = deps.Settings().Source
		}

		mu.Lock()
		defer mu.Unlock()
		if src, ok := built[name]; ok {
			return src, nil
		}
		src, err := NewSource(name, deps)
		if err != nil {
			return nil, err
		}
		built[name] = src
		return src, nil
	}
}
