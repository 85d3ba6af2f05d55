package maps

import "github.com/cornelk/hashmap"

// CornelkMap implements ConcurrentMap on top of cornelk/hashmap.
type CornelkMap[K Key, V any] struct {
	m *hashmap.Map[K, V]
}

// NewCornelkMap creates a new CornelkMap.
func NewCornelkMap[K Key, V any]() ConcurrentMap[K, V] {
	return &CornelkMap[K, V]{m: hashmap.New[K, V]()}
}

// Load returns the value for a given key.
func (m *CornelkMap[K, V]) Load(key K) (V, bool) {
	return m.m.Get(key)
}

// Store sets the value for a given key.
func (m *CornelkMap[K, V]) Store(key K, value V) {
	m.m.Set(key, value)
}

// Delete removes a key from the map.
func (m *CornelkMap[K, V]) Delete(key K) {
	m.m.Del(key)
}

// LoadOrStore returns the existing value for the key, or stores and returns
// the factory's value. The factory runs eagerly because the backing map's
// GetOrInsert takes a value, not a constructor.
func (m *CornelkMap[K, V]) LoadOrStore(key K, valueFactory func() V) (V, bool) {
	return m.m.GetOrInsert(key, valueFactory())
}

// Range iterates over all items in the map.
func (m *CornelkMap[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(f)
}
