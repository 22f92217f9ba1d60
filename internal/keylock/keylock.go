// Package keylock provides mutexes addressed by key, such as a stock or user id.
package keylock

import (
	"cmp"
	"slices"
	"sync"
)

// Map hands out one mutex per key. Mutexes are created lazily and live for
// the lifetime of the Map, which is fine for the small, bounded key spaces
// it is used with (stock ids and active users).
type Map[K cmp.Ordered] struct {
	mu    sync.RWMutex
	locks map[K]*sync.Mutex
}

// New creates an empty lock map.
func New[K cmp.Ordered]() *Map[K] {
	return &Map[K]{locks: make(map[K]*sync.Mutex)}
}

func (m *Map[K]) get(key K) *sync.Mutex {
	m.mu.RLock()
	l, ok := m.locks[key]
	m.mu.RUnlock()
	if ok {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok = m.locks[key]; ok {
		return l
	}
	l = &sync.Mutex{}
	m.locks[key] = l
	return l
}

// Lock acquires the mutex for key and returns its release function.
func (m *Map[K]) Lock(key K) (unlock func()) {
	l := m.get(key)
	l.Lock()
	return l.Unlock
}

// LockAll acquires the mutexes for every distinct key in ascending order, so
// two callers locking overlapping sets can never deadlock. The returned
// function releases them in reverse.
func (m *Map[K]) LockAll(keys ...K) (unlock func()) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]func(), 0, len(sorted))
	for _, k := range sorted {
		held = append(held, m.Lock(k))
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
}
