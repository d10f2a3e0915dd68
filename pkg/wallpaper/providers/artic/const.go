package artic

import (
	"regexp"
	"time"
)

const (
	// SourceName is the identifier used in settings and identity keys.
	SourceName = "ArtInstituteChicago"

	// APIBaseURL is the base for all API calls
	APIBaseURL = "https://api.artic.edu/api/v1"

	// DefaultIIIFURL serves the images when a response carries no IIIF config.
	DefaultIIIFURL = "https://www.artic.edu/iiif/2"

	// UnknownArtist is used when the artwork has no artist.
	UnknownArtist = "Unknown Artist"

	// PoliteDelay spaces out requests to the AIC servers, which ask clients not to
	// hammer them.
	PoliteDelay = 1500 * time.Millisecond

	searchLimit     = 100
	idListTTL       = 6 * time.Hour
	idCacheBytes    = 4 << 20
	iiifMaxEdge     = 4096
	untitledArtwork = "Untitled"
)

// Topics are the search terms a selection round draws from.
var Topics = []string{"impressionism", "landscape", "still life", "portrait", "seascape"}

var yearPattern = regexp.MustCompile(`\d{4}`)

// detailFields limits artwork responses to what the metadata needs.
const detailFields = "id,title,artist_title,artist_display,date_display,date_start,image_id,thumbnail," +
	"medium_display,dimensions,place_of_origin,credit_line"
