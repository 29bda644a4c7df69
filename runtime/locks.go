package runtime

import (
	"slices"
	"sync"
)

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyedLocker hands out one mutex per key, created on demand and released
// once nobody holds or waits for it.
type KeyedLocker struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{entries: make(map[string]*keyedEntry)}
}

// Lock acquires every key and returns the matching unlock function.
// Keys are de-duplicated and taken in sorted order so that two callers
// locking overlapping sets can never deadlock.
func (l *KeyedLocker) Lock(keys ...string) (unlock func()) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*keyedEntry, 0, len(sorted))
	for _, key := range sorted {
		e := l.acquire(key)
		e.mu.Lock()
		held = append(held, e)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.release(sorted[i], held[i])
		}
	}
}

func (l *KeyedLocker) acquire(key string) *keyedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &keyedEntry{}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *KeyedLocker) release(key string, e *keyedEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
