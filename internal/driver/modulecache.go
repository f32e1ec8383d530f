package driver

import (
	"sync"
)

// MemoryCache is a per-process Cache. Next, when set, is consulted on a miss
// and receives every Put, so a MemoryCache can front a DiskCache.
type MemoryCache struct {
	mu     sync.RWMutex
	byUnit map[Digest]*Artifact
	Next   Cache
}

// NewMemoryCache creates a MemoryCache with the given capacity hint.
func NewMemoryCache(capHint int, next Cache) *MemoryCache {
	return &MemoryCache{byUnit: make(map[Digest]*Artifact, capHint), Next: next}
}

func (c *MemoryCache) Get(key Digest) (*Artifact, bool, error) {
	c.mu.RLock()
	a, ok := c.byUnit[key]
	c.mu.RUnlock()
	if ok || c.Next == nil {
		return a, ok, nil
	}
	a, ok, err := c.Next.Get(key)
	if err != nil || !ok {
		return nil, false, err
	}
	c.mu.Lock()
	c.byUnit[key] = a
	c.mu.Unlock()
	return a, true, nil
}

func (c *MemoryCache) Put(key Digest, a *Artifact) error {
	c.mu.Lock()
	c.byUnit[key] = a
	c.mu.Unlock()
	if c.Next != nil {
		return c.Next.Put(key, a)
	}
	return nil
}

// Len reports the number of artifacts held in memory.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byUnit)
}
