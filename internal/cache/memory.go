package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
)

// MemoryTier is a size-bounded in-process LRU. It is the first tier
// in front of the SQLite and Redis levels.
type MemoryTier struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
	onEvict  func()
}

type memoryItem struct {
	key   string
	entry *Entry
}

// NewMemoryTier creates an LRU holding at most capacity entries.
func NewMemoryTier(capacity int) *MemoryTier {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryTier{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

func (m *MemoryTier) Name() string { return "memory" }

// OnEvict registers fn, called once per entry dropped by LRU pressure
// or expiry. Explicit deletes and Clear are not evictions.
func (m *MemoryTier) OnEvict(fn func()) {
	m.onEvict = fn
}

func (m *MemoryTier) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	item := elem.Value.(*memoryItem)
	if item.entry.Expired() {
		m.evictLocked(elem)
		return nil, nil
	}
	m.order.MoveToFront(elem)
	return item.entry, nil
}

func (m *MemoryTier) Set(_ context.Context, key string, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		elem.Value.(*memoryItem).entry = entry
		m.order.MoveToFront(elem)
		return nil
	}
	// Evict before inserting so len never exceeds capacity.
	for m.order.Len() >= m.capacity {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		m.evictLocked(oldest)
	}
	m.entries[key] = m.order.PushFront(&memoryItem{key: key, entry: entry})
	return nil
}

func (m *MemoryTier) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.entries[key]; ok {
		m.removeLocked(elem)
	}
	return nil
}

func (m *MemoryTier) DeletePattern(_ context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, elem := range m.entries {
		if strings.Contains(key, pattern) {
			m.removeLocked(elem)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryTier) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order.Init()
	m.entries = make(map[string]*list.Element, m.capacity)
	return nil
}

// Len returns the current entry count.
func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *MemoryTier) removeLocked(elem *list.Element) {
	item := elem.Value.(*memoryItem)
	m.order.Remove(elem)
	delete(m.entries, item.key)
}

func (m *MemoryTier) evictLocked(elem *list.Element) {
	m.removeLocked(elem)
	if m.onEvict != nil {
		m.onEvict()
	}
}
