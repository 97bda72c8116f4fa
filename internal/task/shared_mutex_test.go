package task

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSharedMutexTry(t *testing.T) {
	rw := &SharedMutex{}
	if !rw.TryRLock() || !rw.TryRLock() {
		t.Fatal("TryRLock of unlocked mutex failed")
	}
	if rw.TryLock() {
		t.Fatal("TryLock succeeded while read-locked")
	}
	rw.RUnlock()
	rw.RUnlock()
	if !rw.TryLock() {
		t.Fatal("TryLock of unlocked mutex failed")
	}
	if rw.TryRLock() {
		t.Fatal("TryRLock succeeded while write-locked")
	}
	rw.Unlock()
}

func TestSharedMutexReadersOverlap(t *testing.T) {
	const readers = 4
	rw := &SharedMutex{}
	var inside sync.WaitGroup
	inside.Add(readers)
	all := make(chan struct{})
	for i := 0; i < readers; i++ {
		go func() {
			rw.RLock()
			inside.Done()
			// Every reader holds the lock until all of them got it.
			<-all
			rw.RUnlock()
		}()
	}
	done := make(chan struct{})
	go func() {
		inside.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("readers did not hold the lock concurrently")
	}
	close(all)
}

func TestSharedMutexWriterExcludes(t *testing.T) {
	rw := &SharedMutex{}
	var readers, writers atomic.Int32
	var bad atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if (i+j)%3 == 0 {
					rw.Lock()
					if writers.Add(1) != 1 || readers.Load() != 0 {
						bad.Store(true)
					}
					writers.Add(-1)
					rw.Unlock()
				} else {
					rw.RLock()
					readers.Add(1)
					if writers.Load() != 0 {
						bad.Store(true)
					}
					readers.Add(-1)
					rw.RUnlock()
				}
			}
		}(i)
	}
	wg.Wait()
	if bad.Load() {
		t.Error("writer overlapped with another holder")
	}
}

func TestSharedMutexMisuse(t *testing.T) {
	for _, tc := range []struct {
		name string
		fn   func(rw *SharedMutex)
	}{
		{"unlock unlocked", func(rw *SharedMutex) { rw.Unlock() }},
		{"runlock unlocked", func(rw *SharedMutex) { rw.RUnlock() }},
		{"unlock read-locked", func(rw *SharedMutex) { rw.RLock(); rw.Unlock() }},
		{"runlock write-locked", func(rw *SharedMutex) { rw.Lock(); rw.RUnlock() }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("no panic")
				}
			}()
			tc.fn(&SharedMutex{})
		})
	}
}
