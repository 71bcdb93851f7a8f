package dialog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockManagerSerializes(t *testing.T) {
	m := NewLockManager()

	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := m.Acquire(1, "900")
			defer release()

			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, max, "at most one holder per lead at a time")
	assert.Equal(t, 0, m.Len(), "idle locks are evicted")
}

func TestLockManagerIndependentLeads(t *testing.T) {
	m := NewLockManager()

	r1 := m.Acquire(1, "900")
	// A different identity must not block.
	done := make(chan struct{})
	go func() {
		r2 := m.Acquire(1, "901")
		r2()
		close(done)
	}()
	<-done
	r1()
	assert.Equal(t, 0, m.Len())
}

func TestLockReleaseIsIdempotent(t *testing.T) {
	m := NewLockManager()
	release := m.Acquire(7, "x")
	release()
	release() // second call must be a no-op
	assert.Equal(t, 0, m.Len())
}
