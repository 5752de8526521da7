package netutil

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p
}

// closedPort returns a port nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestWaitForPort_Open(t *testing.T) {
	t.Parallel()
	host, port := listen(t)

	assert.True(t, PortOpen(context.Background(), host, port))
	require.NoError(t, WaitForPort(context.Background(), host, port, time.Second, 10*time.Millisecond))
}

func TestWaitForPort_Timeout(t *testing.T) {
	t.Parallel()
	port := closedPort(t)

	assert.False(t, PortOpen(context.Background(), "127.0.0.1", port))
	err := WaitForPort(context.Background(), "127.0.0.1", port, 50*time.Millisecond, 10*time.Millisecond)
	assert.ErrorContains(t, err, "timeout waiting for 127.0.0.1:")
}

func TestWaitForPort_Cancelled(t *testing.T) {
	t.Parallel()
	port := closedPort(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitForPort(ctx, "127.0.0.1", port, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitForPort_NoHost(t *testing.T) {
	t.Parallel()
	assert.ErrorContains(t, WaitForPort(context.Background(), "", 22, time.Second, 0), "no host")
}
