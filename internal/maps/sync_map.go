package maps

import "sync"

// StdSyncMap implements ConcurrentMap on top of the standard library's
// sync.Map. It serves as the dependency-free fallback implementation.
type StdSyncMap[K Key, V any] struct {
	m sync.Map
}

// NewStdSyncMap creates a new StdSyncMap.
func NewStdSyncMap[K Key, V any]() ConcurrentMap[K, V] {
	return &StdSyncMap[K, V]{}
}

// Load returns the value for a given key.
func (m *StdSyncMap[K, V]) Load(key K) (V, bool) {
	val, ok := m.m.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return val.(V), true
}

// Store sets the value for a given key.
func (m *StdSyncMap[K, V]) Store(key K, value V) {
	m.m.Store(key, value)
}

// Delete removes a key from the map.
func (m *StdSyncMap[K, V]) Delete(key K) {
	m.m.Delete(key)
}

// LoadOrStore returns the existing value for the key, or stores and returns
// the factory's value. The factory may run even when the key exists; the
// stored value wins either way.
func (m *StdSyncMap[K, V]) LoadOrStore(key K, valueFactory func() V) (V, bool) {
	val, loaded := m.m.LoadOrStore(key, valueFactory())
	return val.(V), loaded
}

// Range iterates over all items in the map.
func (m *StdSyncMap[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(func(key, value any) bool {
		return f(key.(K), value.(V))
	})
}
