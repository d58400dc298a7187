package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	hash      map[string]string
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is a process-local Store with per-key expiry. It exists for
// local development and tests; a real deployment uses Redis.
type MemoryStore struct {
	entries   map[string]*memoryEntry
	mu        sync.RWMutex
	now       func() time.Time
	stopClean chan struct{}
	cleanOnce sync.Once
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithNow(time.Now)
}

// NewMemoryStoreWithNow is NewMemoryStore with an explicit time source, so
// expiry behavior can be driven by a controlled clock.
func NewMemoryStoreWithNow(now func() time.Time) *MemoryStore {
	m := &MemoryStore{
		entries:   make(map[string]*memoryEntry),
		now:       now,
		stopClean: make(chan struct{}),
	}

	go m.cleanupExpired()

	return m
}

func (m *MemoryStore) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.removeExpired()
		case <-m.stopClean:
			return
		}
	}
}

func (m *MemoryStore) removeExpired() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
		}
	}
}

// live returns the entry for key, dropping it first if it has expired.
// Callers must hold the write lock.
func (m *MemoryStore) live(key string) *memoryEntry {
	entry, ok := m.entries[key]
	if !ok {
		return nil
	}
	if entry.expired(m.now()) {
		delete(m.entries, key)
		return nil
	}
	return entry
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.live(key)
	if entry == nil || entry.hash != nil {
		return "", ErrKeyNotFound
	}
	return entry.value, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = &memoryEntry{value: value, expiresAt: expiresAt}
	m.mu.Unlock()

	return nil
}

func (m *MemoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	m.mu.Unlock()

	return nil
}

func (m *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry := m.live(key); entry != nil {
		entry.expiresAt = m.now().Add(ttl)
	}
	return nil
}

func (m *MemoryStore) HGet(_ context.Context, key, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.live(key)
	if entry == nil || entry.hash == nil {
		return "", ErrKeyNotFound
	}

	value, ok := entry.hash[field]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (m *MemoryStore) HSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.live(key)
	if entry == nil {
		entry = &memoryEntry{hash: make(map[string]string)}
		m.entries[key] = entry
	}
	if entry.hash == nil {
		entry.hash = make(map[string]string)
	}
	entry.hash[field] = value

	return nil
}

func (m *MemoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[string]string)

	entry := m.live(key)
	if entry == nil || entry.hash == nil {
		return result, nil
	}

	for field, value := range entry.hash {
		result[field] = value
	}
	return result, nil
}

func (m *MemoryStore) HDel(_ context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.live(key)
	if entry == nil || entry.hash == nil {
		return nil
	}

	for _, field := range fields {
		delete(entry.hash, field)
	}
	if len(entry.hash) == 0 {
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	m.cleanOnce.Do(func() {
		close(m.stopClean)
	})
	return nil
}
