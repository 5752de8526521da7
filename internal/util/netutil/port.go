package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// DefaultPollInterval is the delay between connection attempts.
const DefaultPollInterval = time.Second

const dialTimeout = 2 * time.Second

// PortOpen reports whether a TCP connection to host:port succeeds right now.
func PortOpen(ctx context.Context, host string, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitForPort polls host:port every interval until it accepts a TCP
// connection or timeout elapses. A zero interval uses DefaultPollInterval.
func WaitForPort(ctx context.Context, host string, port int, timeout, interval time.Duration) error {
	if host == "" {
		return errors.New("no host to wait for")
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	address := net.JoinHostPort(host, strconv.Itoa(port))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if PortOpen(ctx, host, port) {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("timeout waiting for %s after %s", address, timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
