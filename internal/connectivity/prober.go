package connectivity

import (
	"context"
	"errors"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Prober checks reachability. A nil error means online.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// DialProber treats a successful TCP handshake with Address as online.
type DialProber struct {
	Address string
	Timeout time.Duration
}

// Probe dials Address and closes the connection immediately.
func (p DialProber) Probe(ctx context.Context) error {
	dialer := net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Classify maps a probe error to a short reason for logs.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, unix.ENETUNREACH):
		return "network_unreachable"
	case errors.Is(err, unix.EHOSTUNREACH):
		return "host_unreachable"
	case errors.Is(err, unix.ECONNREFUSED):
		return "connection_refused"
	case errors.Is(err, unix.ETIMEDOUT), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "unknown"
}
