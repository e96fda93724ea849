package sysinfo

import (
	"net"
	"net/http"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeConn is a net.Conn with a fixed remote address.
type fakeConn struct {
	net.Conn

	// remote is returned by RemoteAddr.
	remote net.Addr
}

// RemoteAddr returns the configured address.
func (c *fakeConn) RemoteAddr() net.Addr { return c.remote }

// newConn builds a fakeConn from ip:port.
func newConn(t *testing.T, addr string) *fakeConn {
	t.Helper()

	tcp, err := net.ResolveTCPAddr("tcp", addr)
	require.NoError(t, err)

	return &fakeConn{remote: tcp}
}

// TestPeerCounter counts distinct hosts and forgets closed connections.
func TestPeerCounter(t *testing.T) {
	t.Parallel()

	c := NewPeerCounter()
	a1 := newConn(t, "192.168.4.2:5000")
	a2 := newConn(t, "192.168.4.2:5001")
	b := newConn(t, "192.168.4.3:5000")

	c.ConnState(a1, http.StateNew)
	c.ConnState(a2, http.StateNew)
	c.ConnState(b, http.StateNew)
	c.ConnState(b, http.StateActive)
	require.Equal(t, 2, c.Count())

	c.ConnState(b, http.StateClosed)
	c.ConnState(a1, http.StateHijacked)
	require.Equal(t, 1, c.Count())
}

// TestProvider_Uptime follows the clock from creation.
func TestProvider_Uptime(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		p := NewProvider(nil)

		time.Sleep(1500 * time.Millisecond)
		require.Equal(t, 1500*time.Millisecond, p.Uptime())
		require.Zero(t, p.ConnectedClients())
	})
}

// TestProvider_FreeMemory reads runtime statistics.
func TestProvider_FreeMemory(t *testing.T) {
	t.Parallel()

	p := NewProvider(nil)
	require.NotPanics(t, func() { _ = p.FreeMemory() })
}
