package sysinfo

import (
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// Provider answers the status command.
type Provider struct {
	// started is the monotonic process start reference.
	started time.Time
	// peers tracks open client connections.
	peers *PeerCounter
}

// NewProvider creates a provider whose uptime starts now.
func NewProvider(peers *PeerCounter) *Provider {
	if peers == nil {
		peers = NewPeerCounter()
	}

	return &Provider{
		started: time.Now(),
		peers:   peers,
	}
}

// Uptime returns the monotonic time since the provider was created.
func (p *Provider) Uptime() time.Duration {
	return time.Since(p.started)
}

// FreeMemory returns heap bytes the runtime holds but does not use.
func (p *Provider) FreeMemory() uint64 {
	var stats runtime.MemStats

	runtime.ReadMemStats(&stats)

	return stats.HeapIdle - stats.HeapReleased
}

// ConnectedClients returns the number of distinct peers with an open connection.
func (p *Provider) ConnectedClients() int {
	return p.peers.Count()
}

// PeerCounter counts distinct remote hosts with open HTTP connections.
type PeerCounter struct {
	// conns maps each open connection to its remote host.
	conns map[net.Conn]string
	// mu protects conns.
	mu sync.Mutex
}

// NewPeerCounter creates an empty counter.
func NewPeerCounter() *PeerCounter {
	return &PeerCounter{
		conns: make(map[net.Conn]string),
	}
}

// ConnState is an http.Server.ConnState hook.
func (c *PeerCounter) ConnState(conn net.Conn, state http.ConnState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch state {
	case http.StateNew:
		c.conns[conn] = remoteHost(conn.RemoteAddr())
	case http.StateClosed, http.StateHijacked:
		delete(c.conns, conn)
	case http.StateActive, http.StateIdle:
	}
}

// Count returns the number of distinct remote hosts.
func (c *PeerCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	hosts := make(map[string]struct{}, len(c.conns))
	for _, h := range c.conns {
		hosts[h] = struct{}{}
	}

	return len(hosts)
}

// remoteHost strips the port from addr.
func remoteHost(addr net.Addr) string {
	if addr == nil {
		return ""
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}

	return host
}
