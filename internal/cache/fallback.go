package cache

import (
	"sync"
	"time"
)

type fallbackEntry struct {
	data      []byte
	expiresAt time.Time
}

// FallbackCache is a bounded in-process TTL map. When full, the entry closest
// to expiry is evicted.
type FallbackCache struct {
	mu      sync.RWMutex
	entries map[string]fallbackEntry
	maxSize int

	done chan struct{}
	once sync.Once
}

func NewFallbackCache(maxSize int) *FallbackCache {
	fc := &FallbackCache{
		entries: make(map[string]fallbackEntry),
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go fc.cleanup(5 * time.Minute)
	return fc
}

func (fc *FallbackCache) Close() {
	fc.once.Do(func() { close(fc.done) })
}

func (fc *FallbackCache) Get(key string) ([]byte, bool) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	entry, ok := fc.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}

	return entry.data, true
}

func (fc *FallbackCache) Set(key string, data []byte, ttl time.Duration) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if _, exists := fc.entries[key]; !exists && len(fc.entries) >= fc.maxSize {
		fc.evictOldest()
	}

	fc.entries[key] = fallbackEntry{data: data, expiresAt: time.Now().Add(ttl)}
}

func (fc *FallbackCache) Delete(key string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	delete(fc.entries, key)
}

func (fc *FallbackCache) Len() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return len(fc.entries)
}

func (fc *FallbackCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range fc.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.expiresAt
		}
	}

	if oldestKey != "" {
		delete(fc.entries, oldestKey)
	}
}

func (fc *FallbackCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-fc.done:
			return
		case now := <-ticker.C:
			fc.mu.Lock()
			for key, entry := range fc.entries {
				if now.After(entry.expiresAt) {
					delete(fc.entries, key)
				}
			}
			fc.mu.Unlock()
		}
	}
}
