package unsplash

const (
	// SourceName is the identifier used in settings and identity keys.
	SourceName = "Unsplash"

	// APIBaseURL is the Unsplash API root.
	APIBaseURL = "https://api.unsplash.com"

	// SearchQuery restricts random photos to artwork.
	SearchQuery = "art,artwork,painting"

	// recentExclusions is how many recently shown photos are excluded from the random pick.
	recentExclusions = 50

	untitledPhoto = "Untitled"
)
