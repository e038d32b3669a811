// Package transport wraps the raw TCP dials the Replicator and Reconciler
// make against the single peer, generalising the reference repository's
// NetworkConfig/Transport dialer wrapper from an internal cluster
// transport into the one-request-one-reply exchange spec.md's wire
// protocol requires.
package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"
)

// Config bounds dial/read behaviour for a Transport. Per spec.md §5,
// these bounds MUST NOT be applied to client-facing Dispatcher sessions;
// they exist only for outbound peer traffic (replication pushes,
// reconciliation exchanges).
type Config struct {
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// DefaultConfig returns the bounds used by the Reconciler (a 2-second
// connect/read timeout per SPEC_FULL.md §4.5's addition).
func DefaultConfig() Config {
	return Config{
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	}
}

// Transport dials the peer, writes one request, and reads back one
// reply, matching the wire protocol's one-request-per-connection shape.
type Transport struct {
	config Config
	dialer *net.Dialer
}

// New constructs a Transport bound by config.
func New(config Config) *Transport {
	return &Transport{
		config: config,
		dialer: &net.Dialer{Timeout: config.DialTimeout},
	}
}

// ReadTimeout returns the configured read bound, used by callers (the
// Replicator) that need to derive a per-attempt context deadline.
func (t *Transport) ReadTimeout() time.Duration {
	return t.config.ReadTimeout
}

// Exchange dials addr, writes request, half-closes the write side so the
// peer's Dispatcher sees end-of-request, and reads the full reply up to
// EOF or the read deadline. Any dial, write, or read failure is returned
// verbatim for the caller to wrap as a transport error.
func (t *Transport) Exchange(ctx context.Context, addr, request string) (string, error) {
	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if t.config.ReadTimeout > 0 {
		conn.SetDeadline(time.Now().Add(t.config.ReadTimeout))
	}

	if _, err := conn.Write([]byte(request)); err != nil {
		return "", err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite()
	}

	reply, err := readAll(conn)
	if err != nil {
		return "", err
	}
	return reply, nil
}

// Send dials addr and writes request without waiting for a reply, used
// by fire-and-forget replication pushes.
func (t *Transport) Send(ctx context.Context, addr, request string) error {
	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if t.config.ReadTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(t.config.ReadTimeout))
	}
	_, err = conn.Write([]byte(request))
	return err
}

func readAll(conn net.Conn) (string, error) {
	r := bufio.NewReader(conn)
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return string(buf), nil
			}
			return "", err
		}
	}
}
