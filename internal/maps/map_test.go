package maps

import (
	"fmt"
	"sync"
	"testing"
)

// implementations under test, by name.
func implementations[V any]() map[string]ConcurrentMap[string, V] {
	return map[string]ConcurrentMap[string, V]{
		"xsync":   NewXSyncMap[string, V](),
		"cornelk": NewCornelkMap[string, V](),
		"sync":    NewStdSyncMap[string, V](),
	}
}

func TestMapBasicOperations(t *testing.T) {
	for name, m := range implementations[int]() {
		t.Run(name, func(t *testing.T) {
			if _, ok := m.Load("missing"); ok {
				t.Error("Load on empty map reported a value")
			}

			m.Store("a", 1)
			if v, ok := m.Load("a"); !ok || v != 1 {
				t.Errorf("Load(a) = %d, %v; want 1, true", v, ok)
			}

			m.Store("a", 2)
			if v, _ := m.Load("a"); v != 2 {
				t.Errorf("Store did not overwrite: got %d", v)
			}

			m.Delete("a")
			if _, ok := m.Load("a"); ok {
				t.Error("Delete did not remove the key")
			}
		})
	}
}

func TestMapLoadOrStore(t *testing.T) {
	for name, m := range implementations[string]() {
		t.Run(name, func(t *testing.T) {
			v, loaded := m.LoadOrStore("k", func() string { return "first" })
			if loaded || v != "first" {
				t.Errorf("first LoadOrStore = %q, %v; want first, false", v, loaded)
			}

			v, loaded = m.LoadOrStore("k", func() string { return "second" })
			if !loaded || v != "first" {
				t.Errorf("second LoadOrStore = %q, %v; want first, true", v, loaded)
			}
		})
	}
}

func TestMapRange(t *testing.T) {
	for name, m := range implementations[int]() {
		t.Run(name, func(t *testing.T) {
			want := map[string]int{"a": 1, "b": 2, "c": 3}
			for k, v := range want {
				m.Store(k, v)
			}

			got := make(map[string]int)
			m.Range(func(k string, v int) bool {
				got[k] = v
				return true
			})
			if len(got) != len(want) {
				t.Fatalf("Range visited %d entries, want %d", len(got), len(want))
			}
			for k, v := range want {
				if got[k] != v {
					t.Errorf("Range saw %s=%d, want %d", k, got[k], v)
				}
			}
		})
	}
}

func TestMapConcurrentAccess(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 200

	for name, m := range implementations[int]() {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for i := 0; i < perGoroutine; i++ {
						key := fmt.Sprintf("g%d-%d", g, i)
						m.Store(key, i)
						if v, ok := m.Load(key); !ok || v != i {
							t.Errorf("Load(%s) = %d, %v; want %d, true", key, v, ok, i)
							return
						}
					}
				}(g)
			}
			wg.Wait()

			count := 0
			m.Range(func(string, int) bool {
				count++
				return true
			})
			if count != goroutines*perGoroutine {
				t.Errorf("final entry count = %d, want %d", count, goroutines*perGoroutine)
			}
		})
	}
}
