package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Memory is the in-process fallback binding. Values are stored as JSON so
// the marshal round trip behaves exactly like the Redis binding.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	lists map[string]memoryList
}

type memoryItem struct {
	raw       []byte
	expiresAt time.Time
}

type memoryList struct {
	entries   [][]byte
	expiresAt time.Time
}

// NewMemory returns an empty memory cache.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryItem),
		lists: make(map[string]memoryList),
	}
}

// GetJSON implements Cache.
func (m *Memory) GetJSON(_ context.Context, key string, out any) error {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || (!item.expiresAt.IsZero() && time.Now().After(item.expiresAt)) {
		return ErrMiss
	}
	return json.Unmarshal(item.raw, out)
}

// SetJSON implements Cache.
func (m *Memory) SetJSON(_ context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = memoryItem{raw: raw, expiresAt: expires}
	m.mu.Unlock()
	return nil
}

// PushLog implements Cache.
func (m *Memory) PushLog(_ context.Context, key string, entry any, max int64, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.lists[key]
	list.entries = append([][]byte{raw}, list.entries...)
	if max > 0 && int64(len(list.entries)) > max {
		list.entries = list.entries[:max]
	}
	if ttl > 0 {
		list.expiresAt = time.Now().Add(ttl)
	}
	m.lists[key] = list
	return nil
}

// ListLog returns up to limit decoded entries, newest first. Test and
// diagnostics helper; the Redis binding exposes the same data via LRANGE.
func (m *Memory) ListLog(key string, limit int) []json.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list, ok := m.lists[key]
	if !ok || (!list.expiresAt.IsZero() && time.Now().After(list.expiresAt)) {
		return nil
	}
	n := len(list.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]json.RawMessage, n)
	for i := 0; i < n; i++ {
		out[i] = json.RawMessage(list.entries[i])
	}
	return out
}

// Delete implements Cache.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.items, k)
		delete(m.lists, k)
	}
	m.mu.Unlock()
	return nil
}

// Connected implements Cache. The memory binding is never "connected" so
// /health can report the degraded mode.
func (m *Memory) Connected(context.Context) bool {
	return false
}
