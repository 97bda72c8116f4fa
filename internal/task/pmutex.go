package task

// PMutex is a futex based mutex for OS-thread tasks.
//
// It is mainly useful for short operations that need a lock, and as the
// native lock that parked guards wrap.
type PMutex struct {
	futex Futex
}

func (m *PMutex) Lock() {
	// Fast path: try to take an uncontended lock.
	if m.futex.CompareAndSwap(0, 1) {
		// We obtained the mutex.
		return
	}

	// Try to lock the mutex. If it changed from 0 to 2, we took a contended
	// lock.
	for m.futex.Swap(2) != 0 {
		// Wait until we get resumed in Unlock.
		m.futex.Wait(2)
	}
}

// TryLock tries to lock m and reports whether it succeeded.
func (m *PMutex) TryLock() bool {
	return m.futex.CompareAndSwap(0, 1)
}

func (m *PMutex) Unlock() {
	if old := m.futex.Swap(0); old == 0 {
		// Mutex wasn't locked before.
		panic("task: unlock of unlocked PMutex")
	} else if old == 2 {
		// Mutex was a contended lock, so we need to wake the next waiter.
		m.futex.Wake()
	}
}
