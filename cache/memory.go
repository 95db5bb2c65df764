package cache

import (
	"context"
	"sync"
	"time"

	"github.com/warp/quota-simulator/quota"
	"github.com/warp/quota-simulator/simulation"
)

// DefaultMaxEntries bounds a MemoryCache built with maxEntries <= 0.
const DefaultMaxEntries = 1024

type entry struct {
	result  *quota.SimulationResult
	expires time.Time // zero means never
}

// MemoryCache is a process-local ResultCache with TTL and a size bound.
// Results are shared by pointer; callers must not mutate them.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

var _ simulation.ResultCache = (*MemoryCache)(nil)

func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryCache{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*quota.SimulationResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if c.expired(e) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.result, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, result *quota.SimulationResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	e := entry{result: result}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) expired(e entry) bool {
	return !e.expires.IsZero() && !c.now().Before(e.expires)
}

// evictLocked drops expired entries, or the one closest to expiry when
// nothing has expired yet.
func (c *MemoryCache) evictLocked() {
	var (
		victim  string
		soonest time.Time
	)
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			continue
		}
		if victim == "" || (!e.expires.IsZero() && (soonest.IsZero() || e.expires.Before(soonest))) {
			victim, soonest = k, e.expires
		}
	}
	if len(c.entries) >= c.maxEntries && victim != "" {
		delete(c.entries, victim)
	}
}
