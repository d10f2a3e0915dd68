package wallpaper

import (
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// UserAgentTransport wraps an http.RoundTripper and adds a User-Agent header.
type UserAgentTransport struct {
	http.RoundTripper
	UserAgent string
}

// RoundTrip executes a single HTTP transaction, adding the User-Agent header.
func (t *UserAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	clonedReq := req.Clone(req.Context())
	clonedReq.Header.Set("User-Agent", t.UserAgent)
	return t.RoundTripper.RoundTrip(clonedReq)
}

// RateLimitTransport delays requests so that the wrapped transport never exceeds
// the limiter's rate. Waiting honours the request context.
type RateLimitTransport struct {
	http.RoundTripper
	Limiter *rate.Limiter
}

// RoundTrip waits for a token and forwards the request.
func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.RoundTripper.RoundTrip(req)
}

// newTransport returns a transport with bounded connection setup. Body reads are
// left to the caller's context.
func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   HTTPDialTimeout,
			KeepAlive: HTTPKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   HTTPTLSHandshakeTimeout,
		ResponseHeaderTimeout: HTTPResponseHeaderTimeout,
	}
}

// NewHTTPClient returns the client shared by all sources: rate limited, with a
// descriptive User-Agent and bounded connection setup. A nil base uses the tuned
// default transport.
func NewHTTPClient(base http.RoundTripper) *http.Client {
	if base == nil {
		base = newTransport()
	}
	return &http.Client{
		Transport: &UserAgentTransport{
			UserAgent: DefaultUserAgent,
			RoundTripper: &RateLimitTransport{
				RoundTripper: base,
				Limiter:      rate.NewLimiter(rate.Limit(RequestsPerSecond), RequestBurst),
			},
		},
	}
}
