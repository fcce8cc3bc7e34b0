package cache

import (
	"context"
	"sync"
	"time"
)

const defaultTTL = 24 * time.Hour

type memoryItem struct {
	value    []byte
	expireAt time.Time
}

func (m memoryItem) expired(now time.Time) bool {
	return now.After(m.expireAt)
}

// Memory is an in-process Service with TTL expiry and LRU eviction. A
// janitor goroutine sweeps expired entries until Close.
type Memory struct {
	mu      sync.Mutex
	items   map[string]memoryItem
	access  map[string]time.Time
	maxSize int
	janitor *time.Ticker
	done    chan struct{}
}

type MemoryOption func(*Memory)

func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.maxSize = n
		}
	}
}

func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.janitor.Reset(d)
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		items:   make(map[string]memoryItem),
		access:  make(map[string]time.Time),
		maxSize: 1000,
		janitor: time.NewTicker(5 * time.Minute),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.sweep()
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok || item.expired(time.Now()) {
		if ok {
			delete(m.items, key)
			delete(m.access, key)
		}
		return nil, ErrCacheMiss
	}
	m.access[key] = time.Now()
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[key]; !ok && len(m.items) >= m.maxSize {
		m.evictLRU()
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.items[key] = memoryItem{value: stored, expireAt: time.Now().Add(ttl)}
	m.access[key] = time.Now()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.items, key)
		delete(m.access, key)
	}
	return nil
}

func (m *Memory) Close() error {
	m.janitor.Stop()
	select {
	case <-m.done:
	default:
		close(m.done)
	}
	return nil
}

// evictLRU removes the least recently used entry. Caller holds the lock.
func (m *Memory) evictLRU() {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, at := range m.access {
		if first || at.Before(oldest) {
			oldestKey, oldest = key, at
			first = false
		}
	}
	if !first {
		delete(m.items, oldestKey)
		delete(m.access, oldestKey)
	}
}

func (m *Memory) sweep() {
	for {
		select {
		case <-m.done:
			return
		case <-m.janitor.C:
			now := time.Now()
			m.mu.Lock()
			for key, item := range m.items {
				if item.expired(now) {
					delete(m.items, key)
					delete(m.access, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
