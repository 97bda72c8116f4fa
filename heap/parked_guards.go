package heap

import "reflect"

// Mutex is an exclusive lock with a non-blocking acquire. *sync.Mutex and
// *task.PMutex implement it.
type Mutex interface {
	Lock()
	Unlock()
	TryLock() bool
}

// RecursiveMutex is a lock that its owner may take again while holding it.
// The owner is the task ID of the locking thread. *task.RecursiveMutex
// implements it.
type RecursiveMutex interface {
	Lock(owner uintptr)
	Unlock(owner uintptr)
	TryLock(owner uintptr) bool
}

// SharedMutex is a reader/writer lock with non-blocking acquires.
// *sync.RWMutex and *task.SharedMutex implement it.
type SharedMutex interface {
	Lock()
	Unlock()
	TryLock() bool
	RLock()
	RUnlock()
	TryRLock() bool
}

// ParkedMutexGuard holds a Mutex taken by LockParked.
type ParkedMutexGuard struct {
	lh *LocalHeap
	mu Mutex
}

// LockParked locks mu. If mu is free it is taken without parking; otherwise
// the thread parks until it gets the lock.
func LockParked(lh *LocalHeap, mu Mutex) ParkedMutexGuard {
	lh.assertParkingAllowed()
	if !mu.TryLock() {
		lh.BlockWhileParked(func(*ParkedScope) { mu.Lock() })
	}
	lh.acquired(mu)
	return ParkedMutexGuard{lh: lh, mu: mu}
}

// Unlock releases the lock. It must be called exactly once.
func (g *ParkedMutexGuard) Unlock() {
	mu := g.mu
	if mu == nil {
		fatal("unlock of a released ParkedMutexGuard")
	}
	g.mu = nil
	g.lh.released(mu)
	mu.Unlock()
}

// ParkedRecursiveMutexGuard holds a RecursiveMutex taken by
// LockParkedRecursive.
type ParkedRecursiveMutexGuard struct {
	lh *LocalHeap
	mu RecursiveMutex
}

// LockParkedRecursive locks mu on behalf of lh's thread. A thread that
// already holds mu takes it again without parking.
func LockParkedRecursive(lh *LocalHeap, mu RecursiveMutex) ParkedRecursiveMutexGuard {
	lh.assertParkingAllowed()
	owner := lh.task.ID()
	if !mu.TryLock(owner) {
		lh.BlockWhileParked(func(*ParkedScope) { mu.Lock(owner) })
	}
	lh.acquired(mu)
	return ParkedRecursiveMutexGuard{lh: lh, mu: mu}
}

// Unlock releases one level of the lock. It must be called exactly once.
func (g *ParkedRecursiveMutexGuard) Unlock() {
	mu := g.mu
	if mu == nil {
		fatal("unlock of a released ParkedRecursiveMutexGuard")
	}
	g.mu = nil
	g.lh.released(mu)
	mu.Unlock(g.lh.task.ID())
}

// SharedMode selects how a ParkedSharedMutexGuardIf takes its lock.
type SharedMode uint8

const (
	Exclusive SharedMode = iota
	Shared
)

func (m SharedMode) String() string {
	if m == Shared {
		return "shared"
	}
	return "exclusive"
}

// NullBehavior selects what LockSharedParkedIf does with a nil lock.
type NullBehavior uint8

const (
	// RequireNotNull makes a nil lock fatal, even if the guard is disabled.
	RequireNotNull NullBehavior = iota
	// IgnoreIfNull treats a nil lock like a disabled guard.
	IgnoreIfNull
)

type guardState uint8

const (
	guardDisabled guardState = iota
	guardHeld
	guardReleased
)

// ParkedSharedMutexGuardIf holds a SharedMutex in one mode, or nothing if it
// was created disabled.
type ParkedSharedMutexGuardIf struct {
	lh    *LocalHeap
	mu    SharedMutex
	mode  SharedMode
	state guardState
}

// LockSharedParkedIf locks mu in the given mode if enable is true, parking if
// the lock is not free. With enable false the guard does nothing at all, which
// lets callers share one code path between the locked and unlocked case.
func LockSharedParkedIf(lh *LocalHeap, mu SharedMutex, mode SharedMode, nulls NullBehavior, enable bool) ParkedSharedMutexGuardIf {
	lh.assertParkingAllowed()
	null := isNil(mu)
	if nulls == RequireNotNull && null {
		fatal("nil lock passed to LockSharedParkedIf")
	}
	g := ParkedSharedMutexGuardIf{lh: lh, mode: mode}
	if !enable || null {
		return g
	}
	g.mu = mu
	g.state = guardHeld

	switch mode {
	case Shared:
		if !mu.TryRLock() {
			lh.BlockWhileParked(func(*ParkedScope) { mu.RLock() })
		}
	default:
		if !mu.TryLock() {
			lh.BlockWhileParked(func(*ParkedScope) { mu.Lock() })
		}
	}
	lh.acquired(mu)
	return g
}

// RLockParked is LockSharedParkedIf(lh, mu, Shared, RequireNotNull, true).
func RLockParked(lh *LocalHeap, mu SharedMutex) ParkedSharedMutexGuardIf {
	return LockSharedParkedIf(lh, mu, Shared, RequireNotNull, true)
}

// LockExclusiveParked is LockSharedParkedIf(lh, mu, Exclusive,
// RequireNotNull, true).
func LockExclusiveParked(lh *LocalHeap, mu SharedMutex) ParkedSharedMutexGuardIf {
	return LockSharedParkedIf(lh, mu, Exclusive, RequireNotNull, true)
}

// Held reports whether the guard holds its lock.
func (g *ParkedSharedMutexGuardIf) Held() bool {
	return g.state == guardHeld
}

// Mode returns the mode the guard was created with.
func (g *ParkedSharedMutexGuardIf) Mode() SharedMode {
	return g.mode
}

// Unlock releases the lock in the mode it was taken. On a disabled guard it
// does nothing. On an enabled guard it must be called exactly once.
func (g *ParkedSharedMutexGuardIf) Unlock() {
	switch g.state {
	case guardDisabled:
		return
	case guardReleased:
		fatal("unlock of a released ParkedSharedMutexGuardIf")
	}
	g.state = guardReleased
	g.lh.released(g.mu)
	if g.mode == Shared {
		g.mu.RUnlock()
	} else {
		g.mu.Unlock()
	}
}

// isNil reports whether mu is nil, including a nil pointer stored in the
// interface.
func isNil(mu SharedMutex) bool {
	if mu == nil {
		return true
	}
	v := reflect.ValueOf(mu)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
