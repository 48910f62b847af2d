package cache

import (
	"context"
	"sync"
	"time"

	"meal-pipeline/internal/pkg/common"

	"go.uber.org/zap"
)

// MemoryStore 行程內快取，超過容量時以 LRU 淘汰
type MemoryStore struct {
	mu        sync.Mutex
	maxSize   int
	store     map[string]memoryEntry
	evictions int64
}

// memoryEntry 緩存條目
type memoryEntry struct {
	value       []byte
	lastAccess  time.Time
	accessCount int
}

// NewMemoryStore 創建行程內快取
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryStore{
		maxSize: maxSize,
		store:   make(map[string]memoryEntry),
	}
}

// Get 獲取緩存值
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.store[key]
	if !ok {
		return nil, ErrMiss
	}
	entry.lastAccess = time.Now()
	entry.accessCount++
	m.store[key] = entry
	return entry.value, nil
}

// Set 設置緩存值
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.store[key]; !exists && len(m.store) >= m.maxSize {
		m.evictLRU()
	}

	m.store[key] = memoryEntry{
		value:      value,
		lastAccess: time.Now(),
	}
	return nil
}

// Len 目前條目數量
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// Evictions 累計淘汰數量
func (m *MemoryStore) Evictions() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictions
}

// evictLRU 淘汰最少使用的項目，需持有鎖
func (m *MemoryStore) evictLRU() {
	var oldestKey string
	var oldestAccess time.Time
	var lowestAccessCount int
	found := false

	for key, entry := range m.store {
		if !found ||
			entry.accessCount < lowestAccessCount ||
			(entry.accessCount == lowestAccessCount && entry.lastAccess.Before(oldestAccess)) {
			oldestKey = key
			oldestAccess = entry.lastAccess
			lowestAccessCount = entry.accessCount
			found = true
		}
	}

	if found {
		delete(m.store, oldestKey)
		m.evictions++
		common.LogDebug("快取已淘汰(LRU)", zap.String("鍵", oldestKey))
	}
}

// Close 清空快取
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = make(map[string]memoryEntry)
	return nil
}
