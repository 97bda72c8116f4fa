package task

// RecursiveMutex is a mutex that may be locked again by the task that already
// holds it. Every Lock (or successful TryLock) must be matched by an Unlock
// from the same owner.
//
// The owner is a task ID (see Task.ID). Zero is not a valid owner.
type RecursiveMutex struct {
	mu    PMutex
	owner Uintptr

	// Only touched by the owner.
	depth uint32
}

func (m *RecursiveMutex) Lock(owner uintptr) {
	if m.reenter(owner) {
		return
	}
	m.mu.Lock()
	m.acquired(owner)
}

// TryLock tries to lock m for owner and reports whether it succeeded. It always
// succeeds when owner already holds m.
func (m *RecursiveMutex) TryLock(owner uintptr) bool {
	if m.reenter(owner) {
		return true
	}
	if !m.mu.TryLock() {
		return false
	}
	m.acquired(owner)
	return true
}

func (m *RecursiveMutex) Unlock(owner uintptr) {
	if owner == 0 || m.owner.Load() != owner {
		panic("task: unlock of RecursiveMutex not held by caller")
	}
	m.depth--
	if m.depth == 0 {
		m.owner.Store(0)
		m.mu.Unlock()
	}
}

// Held reports whether owner currently holds m.
func (m *RecursiveMutex) Held(owner uintptr) bool {
	return owner != 0 && m.owner.Load() == owner
}

func (m *RecursiveMutex) reenter(owner uintptr) bool {
	if owner == 0 {
		panic("task: RecursiveMutex locked without an owner")
	}
	// Only the owner itself can have stored its own ID, so this read cannot
	// race with a transfer to or from owner.
	if m.owner.Load() != owner {
		return false
	}
	m.depth++
	return true
}

func (m *RecursiveMutex) acquired(owner uintptr) {
	m.owner.Store(owner)
	m.depth = 1
}
