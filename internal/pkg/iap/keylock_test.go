package iap

import (
	"sync"
	"testing"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("apple|orig-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Fatalf("counter = %d, want 100", counter)
	}
}

func TestKeyedMutex_IndependentKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("apple|a")
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("apple|b")
		unlockB()
		close(done)
	}()

	<-done
	unlockA()
}

func TestKeyedMutex_EntriesAreReclaimed(t *testing.T) {
	km := newKeyedMutex()

	for i := 0; i < 10; i++ {
		unlock := km.Lock("google|token")
		unlock()
	}

	km.mu.Lock()
	size := len(km.locks)
	km.mu.Unlock()
	if size != 0 {
		t.Fatalf("lock map holds %d entries after release, want 0", size)
	}
}
