package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	route     *Route
	sc        *Context
	expiresAt time.Time
}

// MemoryCache is the in-process session cache used for development and
// single-box deployments without redis.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an in-memory session cache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) get(key string) *memoryEntry {
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil
	}
	return e
}

func (c *MemoryCache) GetRoute(_ context.Context, channelIdentity string) (*Route, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.get(routeKey(channelIdentity)); e != nil {
		return e.route, nil
	}
	return nil, nil
}

func (c *MemoryCache) SetRoute(_ context.Context, channelIdentity string, route *Route) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[routeKey(channelIdentity)] = &memoryEntry{route: route, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) TouchRoute(_ context.Context, channelIdentity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.get(routeKey(channelIdentity)); e != nil {
		e.expiresAt = c.now().Add(c.ttl)
	}
	return nil
}

func (c *MemoryCache) DeleteRoute(_ context.Context, channelIdentity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, routeKey(channelIdentity))
	return nil
}

func (c *MemoryCache) GetContext(_ context.Context, tenantID int64, channelIdentity string) (*Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.get(sessionKey(tenantID, channelIdentity)); e != nil {
		return e.sc, nil
	}
	return nil, nil
}

func (c *MemoryCache) SetContext(_ context.Context, tenantID int64, channelIdentity string, sc *Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionKey(tenantID, channelIdentity)] = &memoryEntry{sc: sc, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Close() error {
	return nil
}

var _ Cache = (*MemoryCache)(nil)
