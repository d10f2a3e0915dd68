package wallpaper

import "time"

// Acquisition tuning.
const (
	// MaxFetchRetries bounds the provider's attempts per fetch.
	MaxFetchRetries = 3
	// RetryBackoffStep is multiplied by the attempt number between attempts.
	RetryBackoffStep = 2 * time.Second
	// MaxRetryBackoff caps the delay between attempts.
	MaxRetryBackoff = 10 * time.Second
	// MaxReselections bounds how many candidates a source may reject in one fetch.
	MaxReselections = 3
	// CandidateFanout is how many catalog objects are inspected in parallel per selection.
	CandidateFanout = 3
)

// Connectivity probe target: a public DNS resolver reachable from nearly every network.
const (
	ProbeAddress = "8.8.8.8:53"
	ProbeTimeout = 3 * time.Second
)

// Network timeouts. There is no overall request timeout: image bodies can take
// minutes on slow links, so reads are bounded by the stall timeout instead.
const (
	// HTTPDialTimeout bounds establishing a TCP connection.
	HTTPDialTimeout = 15 * time.Second
	// HTTPKeepAlive is the TCP keep-alive probe interval.
	HTTPKeepAlive = 30 * time.Second
	// HTTPTLSHandshakeTimeout bounds the TLS handshake.
	HTTPTLSHandshakeTimeout = 10 * time.Second
	// HTTPResponseHeaderTimeout bounds the wait for response headers once the
	// request is sent.
	HTTPResponseHeaderTimeout = 15 * time.Second
	// DownloadStallTimeout aborts an image download that receives no bytes for this long.
	DownloadStallTimeout = 30 * time.Second
)

// HTTP client tuning.
const (
	RequestsPerSecond  = 20
	RequestBurst       = 5
	DefaultUserAgent   = "Easel/1.0 (+https://github.com/dixieflatline76/Easel)"
	MaxImageDownloadMB = 100
)

// Image processing.
const (
	// ScaleHeadroom is the oversize factor applied to the screen resolution.
	ScaleHeadroom   = 1.2
	SharpenSigma    = 0.5
	JPEGQuality     = 95
	FallbackWidth   = 1920
	FallbackHeight  = 1080
	ImageExt        = ".jpg"
	MetadataExt     = ".json"
	RawDownloadExt  = ".download"
	processedSuffix = "_processed"
)
