package inmemorycache

import (
	"sync"
	"time"
)

type cacheEntry struct {
	data       []byte
	expiration time.Time
}

// Cache holds rendered query responses keyed by the resolved logical query.
// Entries expire on a TTL and the whole cache is flushed whenever the store
// reports a committed write, so consumers never see stale forecasts longer
// than one notification hop.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, data []byte, ttl time.Duration)
	Flush()
}

type InMemoryCache struct {
	cache           map[string]cacheEntry
	mutex           sync.Mutex
	cleanupInterval time.Duration
}

func NewInMemoryCacheProvider(cleanupInterval time.Duration) *InMemoryCache {
	provider := &InMemoryCache{
		cache:           make(map[string]cacheEntry),
		cleanupInterval: cleanupInterval,
	}

	go provider.startCleanup()

	return provider
}

func (m *InMemoryCache) Get(key string) ([]byte, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry, exists := m.cache[key]
	if !exists {
		return nil, false
	}

	if time.Now().After(entry.expiration) {
		delete(m.cache, key)
		return nil, false
	}

	return entry.data, true
}

func (m *InMemoryCache) Set(key string, data []byte, ttl time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.cache[key] = cacheEntry{
		data:       data,
		expiration: time.Now().Add(ttl),
	}
}

// Flush drops every entry; called on store change notifications.
func (m *InMemoryCache) Flush() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.cache = make(map[string]cacheEntry)
}

func (m *InMemoryCache) startCleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mutex.Lock()
		now := time.Now()
		for k, v := range m.cache {
			if now.After(v.expiration) {
				delete(m.cache, k)
			}
		}
		m.mutex.Unlock()
	}
}
