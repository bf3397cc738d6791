package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockPostSerializesSameID(t *testing.T) {
	const iterations = 200
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				unlock := LockPost(42)
				counter++
				unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8*iterations, counter)
}

func TestLockPostIndependentIDs(t *testing.T) {
	unlockA := LockPost(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := LockPost(2)
		unlockB()
		close(done)
	}()

	// A held lock on one post must not block another post's mutation.
	<-done
}

func TestLockPostEntriesAreReleased(t *testing.T) {
	unlock := LockPost(7)
	unlock()

	postLocksMu.Lock()
	_, exists := postLocks[7]
	postLocksMu.Unlock()
	assert.False(t, exists, "released locks must not leak entries")
}
