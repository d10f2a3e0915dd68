package artic

import (
	"io"
	"net/http"
	"sync"
	"time"
)

// serializedTransport lets one request at a time reach the AIC servers, each
// after a pause. The slot is held until the response body is closed.
type serializedTransport struct {
	next  http.RoundTripper
	delay time.Duration
	mu    sync.Mutex
}

func (t *serializedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	// Unlocked when the body is closed, or right away on failure.

	if t.delay > 0 {
		timer := time.NewTimer(t.delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			t.mu.Unlock()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	resp.Body = &lockedBody{ReadCloser: resp.Body, unlock: t.mu.Unlock}
	return resp, nil
}

type lockedBody struct {
	io.ReadCloser
	once   sync.Once
	unlock func()
}

func (b *lockedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.unlock)
	return err
}

// serializedClient copies base with its transport wrapped.
func serializedClient(base *http.Client, delay time.Duration) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	next := base.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	c := *base
	c.Transport = &serializedTransport{next: next, delay: delay}
	return &c
}
