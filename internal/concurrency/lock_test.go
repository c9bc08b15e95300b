package concurrency

import (
	"sync"
	"testing"
)

func TestKeyedLockSerializesPerKey(t *testing.T) {
	m := NewKeyedLockManager()

	const workers = 20
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("cmd-1")
			defer m.Unlock("cmd-1")
			counter++
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("Expected %d increments, got %d", workers, counter)
	}
}

func TestKeyedLockIndependentKeys(t *testing.T) {
	m := NewKeyedLockManager()

	m.Lock("a")
	done := make(chan struct{})
	go func() {
		m.Lock("b")
		m.Unlock("b")
		close(done)
	}()
	<-done
	m.Unlock("a")
}

func TestUnlockUnknownKeyIsNoop(t *testing.T) {
	m := NewKeyedLockManager()
	m.Unlock("never-locked")
}
