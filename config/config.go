// Package config provides configuration management for the Easel service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dixieflatline76/Easel/util"
	"github.com/dixieflatline76/Easel/util/fsutil"
)

// ErrSettingsRecovered reports that settings were served from the backup or from
// defaults because the primary file was unreadable.
var ErrSettingsRecovered = errors.New("settings recovered")

// GetPath returns the path to the user's application data directory.
func GetPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting user home directory: %w", err)
	}
	return filepath.Join(homeDir, "."+strings.ToLower(AppName)), nil
}

// Manager owns the current Settings. Components receive the Manager and read
// the latest snapshot through Current; changes are published to subscribers.
type Manager struct {
	path    string
	mu      sync.Mutex // serializes writers
	current *util.Observable[Settings]
}

// NewManager creates a Manager for settings.json in dataDir. Nothing is read until Load.
func NewManager(dataDir string) *Manager {
	return &Manager{
		path:    filepath.Join(dataDir, SettingsFile),
		current: util.NewObservable(DefaultSettings()),
	}
}

// Path returns the settings file path.
func (m *Manager) Path() string {
	return m.path
}

// Load reads settings.json, falling back to its backup and then to defaults.
// Fields missing from the file keep their defaults and unknown fields are ignored.
// A non-nil error wrapping ErrSettingsRecovered means usable settings were still
// published and the caller should only log it.
func (m *Manager) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, usedBackup, err := fsutil.ReadJSONWithBackup(m.path, DefaultSettings)
	var loadErr error
	switch {
	case err == nil:
	case usedBackup:
		loadErr = fmt.Errorf("%w: primary unreadable (%v), using backup", ErrSettingsRecovered, err)
	case !errors.Is(err, os.ErrNotExist):
		loadErr = fmt.Errorf("%w: primary and backup unreadable (%v), using defaults", ErrSettingsRecovered, err)
	}

	if s.normalize() && loadErr == nil {
		loadErr = fmt.Errorf("%w: invalid fields replaced with defaults", ErrSettingsRecovered)
	}

	m.current.Store(s)
	return s, loadErr
}

// Current returns the latest settings snapshot.
func (m *Manager) Current() Settings {
	return m.current.Load()
}

// Subscribe returns a channel receiving each new settings snapshot and a cancel func.
func (m *Manager) Subscribe() (<-chan Settings, func()) {
	return m.current.Subscribe()
}

// Update applies fn to a copy of the current settings, validates and persists the
// result (backup first, then atomic replace) and publishes it.
func (m *Manager) Update(fn func(*Settings)) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current.Load()
	s.Departments = append([]int(nil), s.Departments...)
	fn(&s)
	if err := s.Validate(); err != nil {
		return m.current.Load(), err
	}
	if err := fsutil.WriteJSONWithBackup(m.path, s); err != nil {
		return m.current.Load(), fmt.Errorf("save settings: %w", err)
	}
	m.current.Store(s)
	return s, nil
}
