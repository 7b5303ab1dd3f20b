// Package cache provides a small generic map whose entries expire after a per-key TTL.
//
// Expired entries are invisible to every read as soon as their deadline passes.
// They are physically removed by [Map.PurgeExpired], which [Map.Janitor] calls on an interval.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiration
}

// Options controls construction of a [Map].
type Options struct {
	// Now is the clock used for deadlines. Defaults to [time.Now].
	Now func() time.Time
}

// Map is a goroutine safe map with per-entry TTL.
type Map[K comparable, V any] struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[K]entry[V]
}

// New constructs an empty [Map].
func New[K comparable, V any](opts Options) *Map[K, V] {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Map[K, V]{now: now, items: make(map[K]entry[V])}
}

func (e entry[V]) live(at time.Time) bool {
	return e.expiresAt.IsZero() || at.Before(e.expiresAt)
}

// Set stores value under key. A ttl of zero or less never expires.
func (m *Map[K, V]) Set(key K, value V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	m.items[key] = entry[V]{value: value, expiresAt: exp}
}

// Get returns the live value for key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	e, ok := m.items[key]
	if !ok || !e.live(m.now()) {
		return zero, false
	}
	return e.value, true
}

// Has reports whether key holds a live value.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Take returns the live value for key and removes it in the same critical section.
//
// An expired entry is removed as well but reported as a miss.
func (m *Map[K, V]) Take(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	e, ok := m.items[key]
	if !ok {
		return zero, false
	}
	delete(m.items, key)
	if !e.live(m.now()) {
		return zero, false
	}
	return e.value, true
}

// Delete removes key.
func (m *Map[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

// Len counts live entries only.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := m.now()
	count := 0
	for _, e := range m.items {
		if e.live(at) {
			count++
		}
	}
	return count
}

// Clear removes every entry.
func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[K]entry[V])
}

// PurgeExpired removes expired entries and returns how many were dropped.
func (m *Map[K, V]) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := m.now()
	n := 0
	for k, e := range m.items {
		if !e.live(at) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

// size counts stored entries, expired or not.
func (m *Map[K, V]) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Janitor calls [Map.PurgeExpired] every interval until ctx is done.
func (m *Map[K, V]) Janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.PurgeExpired()
		}
	}
}
