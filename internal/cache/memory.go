package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

var _ Store = (*Memory)(nil)

type memoryEntry struct {
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

func (e memoryEntry) fresh(now time.Time) bool {
	return now.Before(e.storedAt.Add(e.ttl))
}

// Memory is an in-process Store used for tests and cache-less deployments.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time

	done chan struct{}
	once sync.Once
}

type MemoryOption func(*Memory)

// WithClock injects the time source used for freshness checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.sweepLoop()
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrMiss
	}
	if !entry.fresh(m.now()) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, ErrMiss
	}
	return entry.value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, storedAt: m.now(), ttl: ttl}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) InvalidateAll(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

// Keys returns the live keys with the given prefix.
func (m *Memory) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	var keys []string
	for key, entry := range m.entries {
		if strings.HasPrefix(key, prefix) && entry.fresh(now) {
			keys = append(keys, key)
		}
	}
	return keys
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for key, entry := range m.entries {
				if !entry.fresh(now) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}
