package cache

import "sync"

// Identity keys a cached response by the request that produced it.
type Identity struct {
	Method string
	URL    string
}

// Validators are the revalidation facts retained from a cached response.
// Either field may be empty.
type Validators struct {
	ETag         string
	LastModified string
}

// ValidatorCache maps request identities to conditional-request validators.
// The transport populates it from response headers; request assembly only
// reads it to attach If-None-Match / If-Modified-Since.
type ValidatorCache struct {
	mu      sync.RWMutex
	entries map[Identity]Validators
}

// NewValidatorCache creates an empty validator cache.
func NewValidatorCache() *ValidatorCache {
	return &ValidatorCache{
		entries: make(map[Identity]Validators),
	}
}

// Lookup returns the validators cached for a request identity, if any.
func (c *ValidatorCache) Lookup(id Identity) (Validators, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[id]
	return v, ok
}

// Store records validators for a request identity, replacing any previous
// entry.
func (c *ValidatorCache) Store(id Identity, v Validators) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = v
}

// Invalidate drops the entry for a request identity.
func (c *ValidatorCache) Invalidate(id Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Clear removes all entries.
func (c *ValidatorCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Identity]Validators)
}
