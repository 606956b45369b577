package scans

import (
	"sync"
)

// lockTable serializes concurrent ingestions of the same scan id so the last
// committed write wins instead of two callers interleaving deletes and
// inserts. Entries are dropped once unused.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the key is free and returns the unlock func.
func (t *lockTable) Lock(key string) func() {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		e = &lockEntry{}
		t.entries[key] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		t.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(t.entries, key)
		}
		t.mu.Unlock()
	}
}
