package scans

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockTableSerializesSameKey(t *testing.T) {
	table := newLockTable()

	var mu sync.Mutex
	var inside int
	var maxInside int

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := table.Lock("scan-1")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside, "same key must never be held twice")
	assert.Empty(t, table.entries, "entries are reclaimed once unused")
}

func TestLockTableIndependentKeys(t *testing.T) {
	table := newLockTable()

	unlockA := table.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := table.Lock("b")
		unlockB()
		close(done)
	}()
	<-done // b must not wait on a
	unlockA()
	assert.Empty(t, table.entries)
}
