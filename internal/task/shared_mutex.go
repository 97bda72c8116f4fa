package task

// SharedMutex is a reader/writer lock built on a futex. Any number of readers
// or a single writer may hold it. There is no fairness between readers and
// writers: whoever sees the lock free first takes it.
type SharedMutex struct {
	// state is the current state of the SharedMutex.
	// Iff the mutex is completely unlocked, it contains sharedStateUnlocked (aka 0).
	// Iff the mutex is write-locked, it contains sharedStateWLocked.
	// While the mutex is read-locked, it contains the current number of readers.
	state Futex

	// Number of tasks sleeping on state. Unlockers skip the wake-up system
	// call while this is zero.
	waiters Uint32
}

const (
	sharedStateUnlocked = uint32(0)
	sharedStateWLocked  = ^uint32(0)
	sharedMaxReaders    = sharedStateWLocked - 1
)

// Lock takes the lock exclusively.
func (rw *SharedMutex) Lock() {
	for {
		v := rw.state.Load()
		if v == sharedStateUnlocked {
			if rw.state.CompareAndSwap(sharedStateUnlocked, sharedStateWLocked) {
				return
			}
			continue
		}
		rw.sleep(v)
	}
}

// TryLock tries to take the lock exclusively and reports whether it succeeded.
func (rw *SharedMutex) TryLock() bool {
	return rw.state.CompareAndSwap(sharedStateUnlocked, sharedStateWLocked)
}

func (rw *SharedMutex) Unlock() {
	switch v := rw.state.Load(); v {
	case sharedStateWLocked:
		// This is correct.

	case sharedStateUnlocked:
		// The mutex is already unlocked.
		panic("task: unlock of unlocked SharedMutex")

	default:
		// The mutex is read-locked instead of write-locked.
		panic("task: write-unlock of read-locked SharedMutex")
	}
	rw.state.Store(sharedStateUnlocked)
	rw.wakeAll()
}

// RLock takes the lock shared.
func (rw *SharedMutex) RLock() {
	for {
		v := rw.state.Load()
		if v == sharedStateWLocked {
			// Wait for the write lock to be released.
			rw.sleep(v)
			continue
		}
		if v == sharedMaxReaders {
			panic("task: too many readers on SharedMutex")
		}
		if rw.state.CompareAndSwap(v, v+1) {
			return
		}
	}
}

// TryRLock tries to take the lock shared and reports whether it succeeded.
func (rw *SharedMutex) TryRLock() bool {
	for {
		v := rw.state.Load()
		if v == sharedStateWLocked {
			return false
		}
		if v == sharedMaxReaders {
			panic("task: too many readers on SharedMutex")
		}
		if rw.state.CompareAndSwap(v, v+1) {
			return true
		}
	}
}

func (rw *SharedMutex) RUnlock() {
	for {
		v := rw.state.Load()
		switch v {
		case sharedStateUnlocked:
			// The mutex is already unlocked.
			panic("task: unlock of unlocked SharedMutex")

		case sharedStateWLocked:
			// The mutex is write-locked instead of read-locked.
			panic("task: read-unlock of write-locked SharedMutex")
		}
		if rw.state.CompareAndSwap(v, v-1) {
			if v-1 == sharedStateUnlocked {
				// This was the last reader.
				rw.wakeAll()
			}
			return
		}
	}
}

// Sleep until state is no longer v. The waiter count is raised before the
// futex compares the value, so an unlocker either sees the waiter or changed
// the value before the comparison.
func (rw *SharedMutex) sleep(v uint32) {
	rw.waiters.Add(1)
	rw.state.Wait(v)
	rw.waiters.Add(^uint32(0))
}

func (rw *SharedMutex) wakeAll() {
	if rw.waiters.Load() != 0 {
		rw.state.WakeAll()
	}
}
