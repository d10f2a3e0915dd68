package metmuseum

import (
	"regexp"
	"time"
)

const (
	// SourceName is the identifier used in settings and identity keys.
	SourceName = "MetMuseum"

	// APIBaseURL is the base for all API calls
	APIBaseURL = "https://collectionapi.metmuseum.org/public/collection/v1"

	// Department IDs
	DeptEuropeanPaintings = 11
	DeptModernArt         = 21

	// UnknownArtist is used when the object has no artist display name.
	UnknownArtist = "Unknown Artist"

	idListTTL       = 6 * time.Hour
	idCacheBytes    = 8 << 20
	objectFetchers  = 3
	untitledArtwork = "Untitled"
)

var yearPattern = regexp.MustCompile(`\d{4}`)
