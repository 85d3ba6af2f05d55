package maps

import "github.com/puzpuzpuz/xsync/v4"

// XSyncMap implements ConcurrentMap on top of puzpuzpuz/xsync/v4.
type XSyncMap[K Key, V any] struct {
	m *xsync.Map[K, V]
}

// NewXSyncMap creates a new XSyncMap, returning it as a ConcurrentMap.
func NewXSyncMap[K Key, V any]() ConcurrentMap[K, V] {
	return &XSyncMap[K, V]{m: xsync.NewMap[K, V]()}
}

// Load returns the value for a given key.
func (m *XSyncMap[K, V]) Load(key K) (V, bool) {
	return m.m.Load(key)
}

// Store sets the value for a given key.
func (m *XSyncMap[K, V]) Store(key K, value V) {
	m.m.Store(key, value)
}

// Delete removes a key from the map.
func (m *XSyncMap[K, V]) Delete(key K) {
	m.m.Delete(key)
}

// LoadOrStore returns the existing value for the key, or stores and returns
// the factory's value. The factory runs only when no value was present.
func (m *XSyncMap[K, V]) LoadOrStore(key K, valueFactory func() V) (V, bool) {
	return m.m.LoadOrCompute(key, func() (V, bool) {
		// The factory for LoadOrCompute returns (value, cancel); we never
		// cancel the insert.
		return valueFactory(), false
	})
}

// Range iterates over all items in the map.
func (m *XSyncMap[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(f)
}
