// Package cache provides the process-local TTL map used by the embedding
// and LLM caches, and a Redis-backed JSON cache used for session mirroring
// and response caching.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLMap is a concurrency-safe map whose entries expire after a fixed TTL.
// Writes schedule their own eviction; a race between an eviction and a
// re-insert may temporarily double-store, which is benign.
type TTLMap[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry[V]
}

func NewTTLMap[V any](ttl time.Duration) *TTLMap[V] {
	return &TTLMap[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
	}
}

func (m *TTLMap[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (m *TTLMap[V]) Set(key string, value V) {
	deadline := time.Now().Add(m.ttl)
	m.mu.Lock()
	m.entries[key] = entry[V]{value: value, expiresAt: deadline}
	m.mu.Unlock()

	time.AfterFunc(m.ttl, func() {
		m.mu.Lock()
		if e, ok := m.entries[key]; ok && !time.Now().Before(e.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
	})
}

func (m *TTLMap[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
