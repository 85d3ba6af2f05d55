// Package maps provides a small concurrent map abstraction so the result
// registry can swap its backing implementation without touching callers.
package maps

// mapImplementation controls the default backing store.
// Valid options: "xsync", "cornelk", "sync".
const mapImplementation = "xsync"

// Key is the constraint shared by every backing implementation: string or
// integer keys, which covers trace paths and event identities.
type Key interface {
	~string |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// ConcurrentMap is a generic, thread-safe map. All operations are safe for
// concurrent use; Range visits a point-in-time view of the entries.
type ConcurrentMap[K Key, V any] interface {
	Load(key K) (V, bool)
	Store(key K, value V)
	Delete(key K)
	LoadOrStore(key K, valueFactory func() V) (V, bool)
	Range(f func(key K, value V) bool)
}

// New returns the default concurrent map implementation. The backing store
// can be changed by modifying the mapImplementation constant.
func New[K Key, V any]() ConcurrentMap[K, V] {
	switch mapImplementation {
	case "xsync":
		return NewXSyncMap[K, V]()
	case "cornelk":
		return NewCornelkMap[K, V]()
	case "sync":
		return NewStdSyncMap[K, V]()
	default:
		return NewXSyncMap[K, V]()
	}
}
