//go:build !linux

package task

import (
	"sync"
	"time"
	"unsafe"
)

// Futex emulation for systems without a futex system call. Waiters are kept
// in a small hash table of buckets keyed on the futex address, which gives the
// same no-lost-wake-up guarantee: the value is compared under the bucket lock
// and wakers take the same lock after changing the value.

const futexBuckets = 64

type futexBucket struct {
	lock    sync.Mutex
	waiters map[*uint32][]chan struct{}
}

var futexTable [futexBuckets]futexBucket

func bucketFor(addr *uint32) *futexBucket {
	return &futexTable[(uintptr(unsafe.Pointer(addr))>>2)%futexBuckets]
}

// Atomically check for cmp to still be equal to the futex value and if so, go
// to sleep. Return true if we were definitely awoken by a call to Wake or
// WakeAll, and false if we can't be sure of that.
func (f *Futex) Wait(cmp uint32) bool {
	return f.wait(cmp, nil)
}

// Like Wait, but times out after the number of nanoseconds in timeout.
func (f *Futex) WaitUntil(cmp uint32, timeout uint64) {
	timer := time.NewTimer(time.Duration(timeout))
	defer timer.Stop()
	f.wait(cmp, timer.C)
}

func (f *Futex) wait(cmp uint32, timeout <-chan time.Time) bool {
	addr := f.addr()
	b := bucketFor(addr)
	b.lock.Lock()
	if f.Load() != cmp {
		b.lock.Unlock()
		return false
	}
	if b.waiters == nil {
		b.waiters = make(map[*uint32][]chan struct{})
	}
	ch := make(chan struct{})
	b.waiters[addr] = append(b.waiters[addr], ch)
	b.lock.Unlock()

	select {
	case <-ch:
		return true
	case <-timeout:
	}

	// Timed out: remove ourselves, unless a waker got to us in the meantime.
	b.lock.Lock()
	list := b.waiters[addr]
	for i, c := range list {
		if c == ch {
			b.waiters[addr] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.waiters[addr]) == 0 {
		delete(b.waiters, addr)
	}
	b.lock.Unlock()
	return false
}

// Wake a single waiter.
func (f *Futex) Wake() {
	f.wake(1)
}

// Wake all waiters.
func (f *Futex) WakeAll() {
	f.wake(-1)
}

func (f *Futex) wake(n int) {
	addr := f.addr()
	b := bucketFor(addr)
	b.lock.Lock()
	list := b.waiters[addr]
	if n < 0 || n > len(list) {
		n = len(list)
	}
	for _, ch := range list[:n] {
		close(ch)
	}
	if n == len(list) {
		delete(b.waiters, addr)
	} else {
		b.waiters[addr] = list[n:]
	}
	b.lock.Unlock()
}

func (f *Futex) addr() *uint32 {
	return (*uint32)(unsafe.Pointer(&f.Uint32))
}
