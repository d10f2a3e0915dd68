package wallpaper

import (
	"context"
	"net"
	"time"
)

// Probe answers whether the network is reachable right now.
type Probe interface {
	Available(ctx context.Context) bool
}

// TCPProbe checks connectivity by opening a TCP connection to a well-known endpoint.
type TCPProbe struct {
	Address string
	Timeout time.Duration
}

// NewTCPProbe returns a probe against the default public resolver.
func NewTCPProbe() *TCPProbe {
	return &TCPProbe{Address: ProbeAddress, Timeout: ProbeTimeout}
}

// Available returns true if the endpoint accepted a connection within the timeout.
// Every failure, including cancellation, reads as offline.
func (p *TCPProbe) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) bool

// Available calls f.
func (f ProbeFunc) Available(ctx context.Context) bool {
	return f(ctx)
}
