package config

import (
	"strings"
	"time"
)

// AppVersion is the version of the service.
var AppVersion string // Or get it from version.txt during build

// AppName is the name of the service.
const AppName = "Easel"

// LogWinSubDir is the sub directory for the log files on windows.
var LogWinSubDir = AppName

// LogSubDir is the sub directory for the log files.
var LogSubDir = "." + strings.ToLower(AppName)

// LogExt is the extension for the log files.
var LogExt = ".log"

// File and directory names inside the application data directory.
const (
	SettingsFile = "settings.json"
	StateFile    = "wallpaper_state.json"
	HistoryFile  = "history.json"
	LockFile     = "app.lock"
	CacheDir     = "cache"
	ArtworksDir  = "artworks"
	MetadataDir  = "metadata"
	BackupExt    = ".bak"
)

// Defaults.
const (
	DefaultUpdateHour          = 7
	DefaultUpdateMinute        = 0
	DefaultChangeIntervalHours = 24
	DefaultSource              = "MetMuseum"
	DefaultControlAddr         = "127.0.0.1:49453"
	DefaultMaxStoredArtworks   = 100
	DefaultMaxHistoryEntries   = 100

	// HistoryCompactTo is the size the ledger is trimmed to by periodic maintenance.
	HistoryCompactTo = 50
)

// KnownSources are the artwork source names accepted in settings.
var KnownSources = []string{"MetMuseum", "ArtInstituteChicago", "Unsplash"}

// DefaultDepartments are the Met departments sampled when none are configured
// (11 = European Paintings, 21 = Modern and Contemporary Art).
var DefaultDepartments = []int{11, 21}

// Service cadences.
const (
	ReconcileInterval   = 30 * time.Minute
	MaintenanceInterval = 24 * time.Hour
	RestartDebounce     = 500 * time.Millisecond
)

// UnsplashKeyName is the keyring entry holding the Unsplash access key.
const UnsplashKeyName = "unsplash_access_key"

// UnsplashKeyEnv overrides the keyring lookup when set.
const UnsplashKeyEnv = "EASEL_UNSPLASH_ACCESS_KEY"
