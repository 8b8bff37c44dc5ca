package etsyapi

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	storedAt  time.Time
}

// MemoryCache is the in-process cache backend: a mutex-guarded map with TTL
// expiry and a max-entry cap. When full it first drops expired entries, then
// the oldest-stored ones.
type MemoryCache struct {
	mu         sync.RWMutex
	store      map[string]memoryEntry
	maxEntries int
}

// NewMemoryCache creates an in-process cache. maxEntries <= 0 means
// unbounded.
func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		store:      make(map[string]memoryEntry),
		maxEntries: maxEntries,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; another writer may have replaced
		// the entry meanwhile.
		if cur, ok := c.store[key]; ok && time.Now().After(cur.expiresAt) {
			delete(c.store, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.store) >= c.maxEntries {
		if _, exists := c.store[key]; !exists {
			c.evictLocked(now)
		}
	}

	c.store[key] = memoryEntry{
		value:     value,
		expiresAt: now.Add(ttl),
		storedAt:  now,
	}
	return nil
}

// evictLocked frees one slot: expired entries first, otherwise the oldest.
func (c *MemoryCache) evictLocked(now time.Time) {
	for key, entry := range c.store {
		if now.After(entry.expiresAt) {
			delete(c.store, key)
			return
		}
	}

	oldestKey := ""
	var oldest time.Time
	for key, entry := range c.store {
		if oldestKey == "" || entry.storedAt.Before(oldest) {
			oldestKey = key
			oldest = entry.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.store, oldestKey)
	}
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *MemoryCache) Clear(_ context.Context, substring string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if substring == "" {
		c.store = make(map[string]memoryEntry)
		return nil
	}
	for key := range c.store {
		if strings.Contains(key, substring) {
			delete(c.store, key)
		}
	}
	return nil
}

func (c *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return !time.Now().After(entry.expiresAt), nil
}

// Len reports the number of stored entries, expired or not. Used by the
// metrics collector.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}
