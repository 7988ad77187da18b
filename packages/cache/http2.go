// Package cache holds the two shared, read-mostly caches consulted while an
// outgoing request is assembled: the per-remote HTTP/2 capability cache and
// the conditional-request validator cache. Both are written by the transport
// as responses arrive and read by every virtual user concurrently, so reads
// must stay cheap and a miss is never an error.
package cache

import (
	"net/url"
	"strconv"
	"sync"
)

// Capability is what we know about a remote's HTTP version support.
type Capability int

const (
	// Unknown means no response from the remote has been observed yet.
	Unknown Capability = iota
	// Http1Confirmed means the remote answered over HTTP/1.x.
	Http1Confirmed
	// Http2Confirmed means the remote answered over HTTP/2.
	Http2Confirmed
)

func (c Capability) String() string {
	switch c {
	case Http1Confirmed:
		return "http/1.1"
	case Http2Confirmed:
		return "h2"
	default:
		return "unknown"
	}
}

// Remote identifies a target endpoint for capability tracking.
type Remote struct {
	Scheme string
	Host   string
	Port   int
}

// RemoteFromURL derives the capability-cache key from a request URL,
// inferring the default port when the URL does not carry one.
func RemoteFromURL(rawURL string) (Remote, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return Remote{}, false
	}

	port := 0
	if p := u.Port(); p != "" {
		port, _ = strconv.Atoi(p)
	}
	if port == 0 {
		switch u.Scheme {
		case "https":
			port = 443
		case "http":
			port = 80
		default:
			return Remote{}, false
		}
	}

	return Remote{Scheme: u.Scheme, Host: u.Hostname(), Port: port}, true
}

// Http2Cache records per-remote HTTP version capabilities for the lifetime of
// a test run. Reads never block beyond a fast RLock and never fail.
type Http2Cache struct {
	mu      sync.RWMutex
	entries map[Remote]Capability
}

// NewHttp2Cache creates an empty capability cache.
func NewHttp2Cache() *Http2Cache {
	return &Http2Cache{
		entries: make(map[Remote]Capability),
	}
}

// Lookup returns the recorded capability for a remote. An absent entry is
// reported as Unknown.
func (c *Http2Cache) Lookup(r Remote) Capability {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[r]
}

// Record stores an observed capability for a remote.
func (c *Http2Cache) Record(r Remote, capability Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[r] = capability
}

// Len returns the number of remotes with a recorded capability.
func (c *Http2Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
