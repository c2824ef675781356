// Package netx provides small networking helpers used at startup to wait for
// backing services (database, object store) to accept connections before the
// app proceeds with migrations and serving.
package netx

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// WaitForTCP dials addr ("host:port") until it succeeds or ctx is done.
// It polls with the given interval; a non-positive interval defaults to
// 500 milliseconds.
func WaitForTCP(ctx context.Context, addr string, interval time.Duration) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		d := net.Dialer{Timeout: interval}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", addr, ctx.Err())
		case <-ticker.C:
		}
	}
}

// HostPortFromURL extracts the "host:port" part from an endpoint URL such as
// "http://127.0.0.1:9000/" or a postgres DSN. Returns an error when the
// input has no host.
func HostPortFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", raw, err)
	}
	host := u.Host
	if host == "" {
		return "", fmt.Errorf("endpoint %q has no host", raw)
	}
	if !strings.Contains(host, ":") {
		switch u.Scheme {
		case "https":
			host += ":443"
		case "postgres", "postgresql":
			host += ":5432"
		default:
			host += ":80"
		}
	}
	return host, nil
}
